package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/registry"
)

func newTestRegistry() *registry.Registry {
	return registry.New(registry.Config{
		HeartbeatInterval: 50 * time.Millisecond,
		HeartbeatTimeout:  3 * time.Second,
		StatusRingSize:    20,
	})
}

func TestConnectSimulatedBecomesKnownAndConnected(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, r.Simulate(ctx, 1))
	require.True(t, r.Known(1))

	list := r.List()
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].VehicleID)
	require.True(t, list[0].Connected)
	require.True(t, list[0].Simulated)

	r.Close()
}

func TestUnknownVehicleOperationsFail(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Snapshot(42)
	require.Error(t, err)
	var unknown *registry.ErrUnknownVehicle
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, 42, unknown.VehicleID)

	require.Error(t, r.Disconnect(42))
	require.False(t, r.Known(42))
}

func TestSimulatedTelemetryArrivesWithinTwoSeconds(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	require.NoError(t, r.Simulate(ctx, 1))
	defer r.Close()

	require.Eventually(t, func() bool {
		snap, err := r.Snapshot(1)
		return err == nil && !snap.LastUpdate.IsZero() && snap.Lat != 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReconnectRetainsEndpointConfig(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	require.NoError(t, r.Simulate(ctx, 1))
	defer r.Close()

	require.NoError(t, r.Reconnect(ctx, 1))

	l, err := r.Link(1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return l.State() == link.StateSimulated
	}, time.Second, 10*time.Millisecond)
}

func TestSyncReportsPerVehicleOutcome(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	require.NoError(t, r.Simulate(ctx, 1))
	require.NoError(t, r.Simulate(ctx, 2))
	defer r.Close()

	results := r.Sync(ctx)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
	}
}

func TestSubscribeReceivesVehicleEvents(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	events, cancel := r.Subscribe()
	defer cancel()

	require.NoError(t, r.Simulate(ctx, 1))
	defer r.Close()

	select {
	case e := <-events:
		require.Equal(t, 1, e.VehicleID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a vehicle event within 2s")
	}
}
