package mission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandProducesNPlus3Items(t *testing.T) {
	waypoints := []Waypoint{
		{Lat: 1, Lon: 1, Alt: 20},
		{Lat: 2, Lon: 2, Alt: 20},
		{Lat: 3, Lon: 3, Alt: 20},
		{Lat: 4, Lon: 4, Alt: 20},
	}

	items := expand(waypoints, 20)
	require.Len(t, items, len(waypoints)+3)

	require.Equal(t, cmdNavWaypoint, items[0].Command)
	require.Equal(t, waypoints[0].Lat, items[0].Lat)
	require.Equal(t, transitAltitude, items[0].Alt)

	require.Equal(t, cmdNavTakeoff, items[1].Command)
	require.Equal(t, waypoints[0].Lat, items[1].Lat)
	require.NotZero(t, items[1].Lat)
	require.Equal(t, 20.0, items[1].Alt)

	for i, wp := range waypoints {
		require.Equal(t, wp.Lat, items[2+i].Lat)
		require.Equal(t, wp.Lon, items[2+i].Lon)
	}

	last := items[len(items)-1]
	require.Equal(t, cmdNavReturnToLaunch, last.Command)
}
