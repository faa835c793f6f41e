package detection_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/detection"
)

func TestParseDetectionRecord(t *testing.T) {
	p := detection.New(10)
	ev, ok := p.Parse(1, "DET|d-1|23.1|85.2|0.9|3", time.Now())
	require.True(t, ok)
	require.Equal(t, detection.EventDetection, ev.Kind)
	require.Equal(t, "d-1", ev.Detection.DetectionID)
	require.Equal(t, 1, ev.Detection.VehicleID)
}

func TestParseUnknownTagIsNotAnError(t *testing.T) {
	p := detection.New(10)
	_, ok := p.Parse(1, "GPS lock acquired", time.Now())
	require.False(t, ok)
}

func TestParseMalformedKnownTagIsDropped(t *testing.T) {
	p := detection.New(10)
	_, ok := p.Parse(1, "DET|only-two-fields", time.Now())
	require.False(t, ok)
}

// TestDuplicateDetectionIDsAreSuppressed verifies that re-parsing the same
// detection id, even across distinct status-text lines, never yields a
// second DetectionEvent, for any sequence of ids drawn from a small alphabet
// (so repeats are exercised), with a capacity large enough that nothing is
// evicted.
func TestDuplicateDetectionIDsAreSuppressed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	idAlphabet := gen.IntRange(0, 7)
	ids := gen.SliceOf(idAlphabet)

	properties.Property("each id emits at most one event while still within the dedup window", prop.ForAll(
		func(rawIDs []int) bool {
			if len(rawIDs) == 0 {
				return true
			}
			p := detection.New(len(rawIDs) + 1) // capacity large enough to never evict
			seen := make(map[int]bool)
			emitted := make(map[int]int)
			for _, id := range rawIDs {
				text := fmt.Sprintf("DET|id-%d|1.0|2.0|0.5|1", id)
				_, ok := p.Parse(1, text, time.Now())
				if ok {
					emitted[id]++
				}
				seen[id] = true
			}
			for id, count := range emitted {
				_ = id
				if count != 1 {
					return false
				}
			}
			return true
		},
		ids,
	))

	properties.TestingRun(t)
}

// TestFIFOEvictionAdmitsReplay verifies the dedup set's FIFO eviction policy:
// once more than capacity distinct ids have been seen, the oldest id falls
// out of the window and is treated as new again.
func TestFIFOEvictionAdmitsReplay(t *testing.T) {
	const capacity = 3
	p := detection.New(capacity)

	for i := 0; i < capacity; i++ {
		_, ok := p.Parse(1, fmt.Sprintf("DET|id-%d|1.0|2.0|0.5|1", i), time.Now())
		require.True(t, ok)
	}

	// id-0 is still within the window: re-parsing must be suppressed.
	_, ok := p.Parse(1, "DET|id-0|1.0|2.0|0.5|1", time.Now())
	require.False(t, ok)

	// Push one more distinct id past capacity: id-0 is evicted.
	_, ok = p.Parse(1, "DET|id-3|1.0|2.0|0.5|1", time.Now())
	require.True(t, ok)

	_, ok = p.Parse(1, "DET|id-0|1.0|2.0|0.5|1", time.Now())
	require.True(t, ok)
}
