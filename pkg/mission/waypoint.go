package mission

// Waypoint is an operator-supplied survey point (§3 Waypoint).
type Waypoint struct {
	Lat float64
	Lon float64
	Alt float64
	Seq int
}

// Protocol command codes used inside uploaded mission items.
const (
	cmdNavWaypoint  uint16 = 16
	cmdNavTakeoff   uint16 = 22
	cmdNavReturnToLaunch uint16 = 20
)

// transitAltitude is the low altitude used for the navigate-to-first-point
// item that precedes takeoff (§4.6, 2-5m).
const transitAltitude = 3.0

// expand builds the N+3 mission item sequence from an operator waypoint
// list and the mission's survey altitude (§3 Waypoint invariant, §4.6
// expansion):
//
//  1. navigate-to-first-survey-point at transit altitude
//  2. takeoff at the first survey point at survey altitude
//  3. the N operator waypoints, in order
//  4. return-to-launch terminator
func expand(waypoints []Waypoint, surveyAltitude float64) []Item {
	items := make([]Item, 0, len(waypoints)+3)

	first := waypoints[0]

	items = append(items, Item{
		Seq:     0,
		Command: cmdNavWaypoint,
		Lat:     first.Lat,
		Lon:     first.Lon,
		Alt:     transitAltitude,
	})
	items = append(items, Item{
		Seq:     1,
		Command: cmdNavTakeoff,
		Lat:     first.Lat,
		Lon:     first.Lon,
		Alt:     surveyAltitude,
	})
	for i, wp := range waypoints {
		items = append(items, Item{
			Seq:     uint16(2 + i),
			Command: cmdNavWaypoint,
			Lat:     wp.Lat,
			Lon:     wp.Lon,
			Alt:     wp.Alt,
		})
	}
	items = append(items, Item{
		Seq:          uint16(2 + len(waypoints)),
		Command:      cmdNavReturnToLaunch,
		Autocontinue: 1,
	})

	for i := range items {
		items[i].Autocontinue = 1
	}
	items[0].Current = 0
	return items
}

// Item is one entry of the expanded mission sequence, already in the Link's
// wire units (§3 Waypoint).
type Item struct {
	Seq          uint16
	Command      uint16
	Current      uint8
	Autocontinue uint8
	Lat          float64
	Lon          float64
	Alt          float64
}
