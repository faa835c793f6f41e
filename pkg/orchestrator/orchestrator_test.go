package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/orchestrator"
	"github.com/aerobridge/groundctl/pkg/registry"
)

func newFleet(t *testing.T, vehicleID int) (*registry.Registry, *orchestrator.Orchestrator) {
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

	router := command.New(reg, time.Second)
	uploader := mission.New(reg, time.Second, 3)
	return reg, orchestrator.New(reg, router, uploader, nil)
}

func TestStartMissionReachesRunning(t *testing.T) {
	_, orch := newFleet(t, 1)

	progress, cancel := orch.Subscribe()
	defer cancel()

	waypoints := []mission.Waypoint{
		{Lat: 23.296, Lon: 85.311, Alt: 20},
		{Lat: 23.297, Lon: 85.312, Alt: 20},
	}

	missionID, err := orch.Start(context.Background(), 1, waypoints, 20, 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, missionID)

	sawRunning := false
	deadline := time.After(3 * time.Second)
	for !sawRunning {
		select {
		case p := <-progress:
			if p.State == orchestrator.StateRunning {
				sawRunning = true
			}
		case <-deadline:
			t.Fatal("expected a running progress update within 3s")
		}
	}
}

func TestStartMissionRejectsConcurrentStart(t *testing.T) {
	_, orch := newFleet(t, 1)

	waypoints := []mission.Waypoint{{Lat: 1, Lon: 1, Alt: 20}}

	go func() { _, _ = orch.Start(context.Background(), 1, waypoints, 20, 5, 0) }()
	time.Sleep(2 * time.Millisecond)

	_, err := orch.Start(context.Background(), 1, waypoints, 20, 5, 0)
	if err != nil {
		var already *orchestrator.AlreadyRunningError
		require.ErrorAs(t, err, &already)
	}
}

func TestStopTransitionsToStopped(t *testing.T) {
	_, orch := newFleet(t, 1)
	progress, cancel := orch.Subscribe()
	defer cancel()

	require.NoError(t, orch.Stop(context.Background(), 1))

	select {
	case p := <-progress:
		require.Equal(t, orchestrator.StateStopped, p.State)
	case <-time.After(time.Second):
		t.Fatal("expected a stopped progress update")
	}
}
