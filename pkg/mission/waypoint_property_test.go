package mission

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestExpandSequenceInvariants verifies the N+3 expansion invariant (§3
// Waypoint, §4.6) for any five-waypoint operator list and survey
// altitude: exactly N+3 items come out, sequence numbers are contiguous
// from zero, every operator waypoint appears untouched in order, and the
// sequence terminates in a return-to-launch item.
func TestExpandSequenceInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genWaypoint := gopter.CombineGens(
		gen.Float64Range(-90, 90),
		gen.Float64Range(-180, 180),
		gen.Float64Range(0, 120),
	).Map(func(v []interface{}) Waypoint {
		return Waypoint{Lat: v[0].(float64), Lon: v[1].(float64), Alt: v[2].(float64)}
	})

	genWaypoints := gen.SliceOfN(5, genWaypoint)

	properties.Property("expand produces N+3 contiguous items ending in RTL", prop.ForAll(
		func(waypoints []Waypoint, surveyAltitude float64) bool {
			items := expand(waypoints, surveyAltitude)

			if len(items) != len(waypoints)+3 {
				return false
			}
			for i, item := range items {
				if item.Seq != uint16(i) {
					return false
				}
			}
			for i, wp := range waypoints {
				got := items[2+i]
				if got.Lat != wp.Lat || got.Lon != wp.Lon || got.Command != cmdNavWaypoint {
					return false
				}
			}
			last := items[len(items)-1]
			return last.Command == cmdNavReturnToLaunch
		},
		genWaypoints,
		gen.Float64Range(5, 100),
	))

	properties.TestingRun(t)
}
