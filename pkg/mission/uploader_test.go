package mission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/registry"
)

func newConnectedRegistry(t *testing.T, vehicleID int) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.Config{
		HeartbeatInterval: 50 * time.Millisecond,
		HeartbeatTimeout:  3 * time.Second,
		StatusRingSize:    20,
	})
	require.NoError(t, reg.Simulate(context.Background(), vehicleID))
	t.Cleanup(reg.Close)

	l, err := reg.Link(vehicleID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.State() == link.StateSimulated }, time.Second, 10*time.Millisecond)
	return reg
}

func TestUploadAgainstSimulatedVehicleSucceeds(t *testing.T) {
	reg := newConnectedRegistry(t, 1)
	uploader := mission.New(reg, time.Second, 3)

	waypoints := []mission.Waypoint{
		{Lat: 23.296, Lon: 85.311, Alt: 20},
		{Lat: 23.297, Lon: 85.312, Alt: 20},
	}

	var phases []string
	err := uploader.Upload(context.Background(), 1, waypoints, 20, func(p mission.Progress) {
		phases = append(phases, p.Phase)
	})
	require.NoError(t, err)
	require.Contains(t, phases, "uploading")
	require.Contains(t, phases, "uploaded")
}

func TestUploadEmptyMissionFails(t *testing.T) {
	reg := newConnectedRegistry(t, 1)
	uploader := mission.New(reg, time.Second, 3)

	err := uploader.Upload(context.Background(), 1, nil, 20, nil)
	require.Error(t, err)
	var emptyErr *mission.EmptyMissionError
	require.ErrorAs(t, err, &emptyErr)
}

func TestUploadWhileInProgressFails(t *testing.T) {
	reg := newConnectedRegistry(t, 1)
	uploader := mission.New(reg, time.Second, 3)

	waypoints := []mission.Waypoint{{Lat: 1, Lon: 1, Alt: 20}}

	blocking := make(chan struct{})
	go func() {
		defer close(blocking)
		_ = uploader.Upload(context.Background(), 1, waypoints, 20, nil)
	}()

	// Give the first upload a chance to take the in-progress flag before
	// the second races it.
	time.Sleep(5 * time.Millisecond)
	err := uploader.Upload(context.Background(), 1, waypoints, 20, nil)
	<-blocking

	if err != nil {
		var inProgress *mission.UploadInProgressError
		require.ErrorAs(t, err, &inProgress)
	}
}
