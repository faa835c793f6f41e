package link_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/link"
)

func newOpenSimulatedLink(t *testing.T) *link.Link {
	t.Helper()
	l := link.New(link.Config{
		VehicleID:         1,
		Endpoint:          link.SimulatedEndpoint,
		HeartbeatInterval: 20 * time.Millisecond,
		HeartbeatTimeout:  time.Second,
	})
	require.NoError(t, l.Open(context.Background()))
	t.Cleanup(func() { _ = l.Close() })
	require.Eventually(t, func() bool { return l.State() == link.StateSimulated }, time.Second, 10*time.Millisecond)
	return l
}

func TestOpenAgainstSimulatedEndpointReachesSimulatedState(t *testing.T) {
	newOpenSimulatedLink(t)
}

func TestSendBeforeOpenFailsWithLinkNotOpen(t *testing.T) {
	l := link.New(link.Config{VehicleID: 7, Endpoint: link.SimulatedEndpoint})
	err := l.SendCommandLong(400, 1, 0, 0, 0, 0, 0, 0)
	var notOpen *link.LinkNotOpenError
	require.ErrorAs(t, err, &notOpen)
}

func TestSubscribeReceivesHeartbeatEvents(t *testing.T) {
	l := newOpenSimulatedLink(t)
	events, cancel := l.Subscribe()
	defer cancel()

	select {
	case e := <-events:
		require.Equal(t, link.EventMessage, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event from the simulated transport")
	}
}

// TestSequenceCounterWrapsModulo256 verifies the outgoing packet sequence
// counter invariant (§3): it increases by exactly one per send and wraps at
// 256, regardless of how many sends are issued.
func TestSequenceCounterWrapsModulo256(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("sequence after N sends equals N mod 256", prop.ForAll(
		func(n int) bool {
			l := link.New(link.Config{VehicleID: 99, Endpoint: link.SimulatedEndpoint})
			if err := l.Open(context.Background()); err != nil {
				return false
			}
			defer l.Close()

			deadline := time.Now().Add(time.Second)
			for l.State() != link.StateSimulated && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}

			for i := 0; i < n; i++ {
				_ = l.SendCommandLong(400, 0, 0, 0, 0, 0, 0, 0)
			}
			return int(l.Sequence()) == n%256
		},
		gen.IntRange(0, 400),
	))

	properties.TestingRun(t)
}
