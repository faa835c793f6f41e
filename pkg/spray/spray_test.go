package spray_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/spray"
)

func newTestOrchestrator() *spray.Orchestrator {
	return spray.New(spray.Config{
		TankCapacity:         1000,
		SprayVolumePerTarget: 50,
		RefillThreshold:      100,
		AutoResumeAfterRefill: true,
	})
}

func detections(n int) []spray.DetectionInput {
	out := make([]spray.DetectionInput, n)
	for i := range out {
		out[i] = spray.DetectionInput{DetectionID: "d", Lat: 1, Lon: 1, Confidence: 0.9}
	}
	return out
}

func TestStartWithEmptyQueueFails(t *testing.T) {
	orch := newTestOrchestrator()
	err := orch.Start(1)
	require.Error(t, err)
	var noTargets *spray.NoTargetsError
	require.ErrorAs(t, err, &noTargets)
}

func TestRefillRequiredAfterEighteenCompletions(t *testing.T) {
	orch := newTestOrchestrator()
	events, cancel := orch.Subscribe()
	defer cancel()

	orch.QueueTargets(1, detections(20))
	require.NoError(t, orch.Start(1))

	completed := 0
	for completed < 18 {
		e := <-events
		switch e.Kind {
		case spray.EventNextTarget:
			require.NoError(t, orch.TargetCompleted(1, e.Target.ID, true))
		case spray.EventTargetComplete:
			completed++
		}
	}

	// Drain until refill_required, which must arrive before any further
	// next_target (§4.8 scenario 5).
	var sawRefill bool
	for i := 0; i < 10 && !sawRefill; i++ {
		e := <-events
		if e.Kind == spray.EventRefillRequired {
			sawRefill = true
			require.Equal(t, 2, e.TargetsRemaining)
		}
		require.NotEqual(t, spray.EventNextTarget, e.Kind)
	}
	require.True(t, sawRefill, "expected spray_refill_required")

	tank := orch.Tank(1)
	require.InDelta(t, 100, tank.Current, 0.001)

	require.NoError(t, orch.RefillComplete(1))
	tank = orch.Tank(1)
	require.InDelta(t, 1000, tank.Current, 0.001)
	require.Equal(t, 1, tank.RefillCount)

	// auto_resume_after_refill: refill_complete is published, then target 19
	// is offered.
	e := <-events
	require.Equal(t, spray.EventRefillComplete, e.Kind)
	e = <-events
	require.Equal(t, spray.EventNextTarget, e.Kind)
}

func TestTankAccountingIsMonotonicOnFailure(t *testing.T) {
	orch := newTestOrchestrator()
	events, cancel := orch.Subscribe()
	defer cancel()

	orch.QueueTargets(1, detections(1))
	require.NoError(t, orch.Start(1))

	e := <-events
	require.Equal(t, spray.EventTargetsQueued, e.Kind)
	e = <-events
	require.Equal(t, spray.EventMissionStarted, e.Kind)
	e = <-events
	require.Equal(t, spray.EventNextTarget, e.Kind)

	before := orch.Tank(1).Current
	require.NoError(t, orch.TargetCompleted(1, e.Target.ID, false))
	after := orch.Tank(1).Current
	require.Equal(t, before, after, "a failed target must not refund or decrement the tank")
}
