package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "groundctl", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, VehicleID(1))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("VehicleID", func(t *testing.T) {
		attr := VehicleID(7)
		assert.Equal(t, AttrVehicleID, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("SystemID", func(t *testing.T) {
		attr := SystemID(1)
		assert.Equal(t, AttrSystemID, string(attr.Key))
		assert.Equal(t, int64(1), attr.Value.AsInt64())
	})

	t.Run("Endpoint", func(t *testing.T) {
		attr := Endpoint("/dev/ttyUSB0")
		assert.Equal(t, AttrEndpoint, string(attr.Key))
		assert.Equal(t, "/dev/ttyUSB0", attr.Value.AsString())
	})

	t.Run("Baud", func(t *testing.T) {
		attr := Baud(57600)
		assert.Equal(t, AttrBaud, string(attr.Key))
		assert.Equal(t, int64(57600), attr.Value.AsInt64())
	})

	t.Run("LinkState", func(t *testing.T) {
		attr := LinkState("connected")
		assert.Equal(t, AttrLinkState, string(attr.Key))
		assert.Equal(t, "connected", attr.Value.AsString())
	})

	t.Run("MessageID", func(t *testing.T) {
		attr := MessageID(30)
		assert.Equal(t, AttrMessageID, string(attr.Key))
		assert.Equal(t, int64(30), attr.Value.AsInt64())
	})

	t.Run("Sequence", func(t *testing.T) {
		attr := Sequence(42)
		assert.Equal(t, AttrSequence, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Command", func(t *testing.T) {
		attr := Command("arm")
		assert.Equal(t, AttrCommand, string(attr.Key))
		assert.Equal(t, "arm", attr.Value.AsString())
	})

	t.Run("AckResult", func(t *testing.T) {
		attr := AckResult("ACCEPTED")
		assert.Equal(t, AttrAckResult, string(attr.Key))
		assert.Equal(t, "ACCEPTED", attr.Value.AsString())
	})

	t.Run("MissionID", func(t *testing.T) {
		attr := MissionID("mission-1")
		assert.Equal(t, AttrMissionID, string(attr.Key))
		assert.Equal(t, "mission-1", attr.Value.AsString())
	})

	t.Run("Waypoint", func(t *testing.T) {
		attr := Waypoint(3)
		assert.Equal(t, AttrWaypoint, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("WaypointCount", func(t *testing.T) {
		attr := WaypointCount(10)
		assert.Equal(t, AttrWaypointCount, string(attr.Key))
		assert.Equal(t, int64(10), attr.Value.AsInt64())
	})

	t.Run("Progress", func(t *testing.T) {
		attr := Progress(50.5)
		assert.Equal(t, AttrProgress, string(attr.Key))
		assert.Equal(t, 50.5, attr.Value.AsFloat64())
	})

	t.Run("TargetID", func(t *testing.T) {
		attr := TargetID("target-1")
		assert.Equal(t, AttrTargetID, string(attr.Key))
		assert.Equal(t, "target-1", attr.Value.AsString())
	})

	t.Run("DetectionID", func(t *testing.T) {
		attr := DetectionID("det-1")
		assert.Equal(t, AttrDetectionID, string(attr.Key))
		assert.Equal(t, "det-1", attr.Value.AsString())
	})

	t.Run("TankVolume", func(t *testing.T) {
		attr := TankVolume(2.5)
		assert.Equal(t, AttrTankVolume, string(attr.Key))
		assert.Equal(t, 2.5, attr.Value.AsFloat64())
	})

	t.Run("TankCapacity", func(t *testing.T) {
		attr := TankCapacity(10.0)
		assert.Equal(t, AttrTankCapacity, string(attr.Key))
		assert.Equal(t, 10.0, attr.Value.AsFloat64())
	})

	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID("sess-1")
		assert.Equal(t, AttrSessionID, string(attr.Key))
		assert.Equal(t, "sess-1", attr.Value.AsString())
	})

	t.Run("ClientIP", func(t *testing.T) {
		attr := ClientIP("192.168.1.100")
		assert.Equal(t, AttrClientIP, string(attr.Key))
		assert.Equal(t, "192.168.1.100", attr.Value.AsString())
	})

	t.Run("EventName", func(t *testing.T) {
		attr := EventName("snapshot")
		assert.Equal(t, AttrEventName, string(attr.Key))
		assert.Equal(t, "snapshot", attr.Value.AsString())
	})
}

func TestStartLinkSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartLinkSpan(ctx, "open", 1, Endpoint("/dev/ttyUSB0"), Baud(57600))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartCommandSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCommandSpan(ctx, 1, "arm", Attempt(1))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartMissionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartMissionSpan(ctx, "upload", 1, "mission-1", WaypointCount(8))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartSpraySpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpraySpan(ctx, "target", 1, TargetID("target-1"))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartOperatorSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartOperatorSpan(ctx, "connect", "sess-1", ClientIP("127.0.0.1"))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
