package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for bridge operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Vehicle / link attributes
	// ========================================================================
	AttrVehicleID  = "vehicle.id"
	AttrSystemID   = "vehicle.system_id"
	AttrComponent  = "vehicle.component_id"
	AttrEndpoint   = "link.endpoint"
	AttrBaud       = "link.baud"
	AttrLinkState  = "link.state"
	AttrMessageID  = "link.message_id"
	AttrSequence   = "link.sequence"

	// ========================================================================
	// Command attributes
	// ========================================================================
	AttrCommand    = "command.name"
	AttrAckResult  = "command.ack_result"
	AttrMode       = "command.mode"
	AttrAttempt    = "command.attempt"
	AttrMaxRetries = "command.max_retries"

	// ========================================================================
	// Mission attributes
	// ========================================================================
	AttrMissionID     = "mission.id"
	AttrWaypoint      = "mission.waypoint_seq"
	AttrWaypointCount = "mission.waypoint_count"
	AttrProgress      = "mission.progress_percent"

	// ========================================================================
	// Spray attributes
	// ========================================================================
	AttrTargetID      = "spray.target_id"
	AttrDetectionID   = "spray.detection_id"
	AttrTankVolume    = "spray.tank_volume"
	AttrTankCapacity  = "spray.tank_capacity"

	// ========================================================================
	// Operator channel attributes
	// ========================================================================
	AttrSessionID = "operator.session_id"
	AttrClientIP  = "operator.client_ip"
	AttrEventName = "operator.event"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// ========================================================================
	// Link spans
	// ========================================================================
	SpanLinkOpen     = "link.open"
	SpanLinkClose    = "link.close"
	SpanLinkHeartbeat = "link.heartbeat"
	SpanLinkReconnect = "link.reconnect"
	SpanLinkDecode    = "link.decode"

	// ========================================================================
	// Telemetry aggregation spans
	// ========================================================================
	SpanTelemetryIngest = "telemetry.ingest"
	SpanTelemetrySnapshot = "telemetry.snapshot"
	SpanStatusTextParse = "statustext.parse"

	// ========================================================================
	// Command spans
	// ========================================================================
	SpanCommandExecute = "command.execute"
	SpanCommandAck     = "command.ack"
	SpanCommandArmCheck = "command.arm_precheck"

	// ========================================================================
	// Mission spans
	// ========================================================================
	SpanMissionUpload  = "mission.upload"
	SpanMissionItem    = "mission.item"
	SpanMissionStart   = "mission.start"
	SpanMissionProgress = "mission.progress"

	// ========================================================================
	// Orchestrator spans
	// ========================================================================
	SpanOrchestratorRun    = "orchestrator.run"
	SpanOrchestratorTransition = "orchestrator.transition"

	// ========================================================================
	// Spray spans
	// ========================================================================
	SpanSprayTarget   = "spray.target"
	SpanSprayDispense = "spray.dispense"
	SpanSprayRefill   = "spray.refill"

	// ========================================================================
	// Operator channel spans
	// ========================================================================
	SpanOperatorConnect = "operator.connect"
	SpanOperatorEvent   = "operator.event"
)

// VehicleID returns an attribute for the vehicle identifier.
func VehicleID(id int) attribute.KeyValue {
	return attribute.Int(AttrVehicleID, id)
}

// SystemID returns an attribute for the MAVLink system id.
func SystemID(id uint8) attribute.KeyValue {
	return attribute.Int(AttrSystemID, int(id))
}

// ComponentID returns an attribute for the MAVLink component id.
func ComponentID(id uint8) attribute.KeyValue {
	return attribute.Int(AttrComponent, int(id))
}

// Endpoint returns an attribute for the link transport endpoint.
func Endpoint(ep string) attribute.KeyValue {
	return attribute.String(AttrEndpoint, ep)
}

// Baud returns an attribute for the serial baud rate.
func Baud(baud int) attribute.KeyValue {
	return attribute.Int(AttrBaud, baud)
}

// LinkState returns an attribute for the link connection state.
func LinkState(state string) attribute.KeyValue {
	return attribute.String(AttrLinkState, state)
}

// MessageID returns an attribute for a decoded MAVLink message id.
func MessageID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrMessageID, int64(id))
}

// Sequence returns an attribute for the outgoing packet sequence counter.
func Sequence(seq uint8) attribute.KeyValue {
	return attribute.Int(AttrSequence, int(seq))
}

// Command returns an attribute for a symbolic command name.
func Command(cmd string) attribute.KeyValue {
	return attribute.String(AttrCommand, cmd)
}

// AckResult returns an attribute for a MAVLink command ack result.
func AckResult(result string) attribute.KeyValue {
	return attribute.String(AttrAckResult, result)
}

// Mode returns an attribute for a flight mode name.
func Mode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// Attempt returns an attribute for the current retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// MaxRetries returns an attribute for the configured retry ceiling.
func MaxRetries(n int) attribute.KeyValue {
	return attribute.Int(AttrMaxRetries, n)
}

// MissionID returns an attribute for a mission identifier.
func MissionID(id string) attribute.KeyValue {
	return attribute.String(AttrMissionID, id)
}

// Waypoint returns an attribute for a mission item sequence number.
func Waypoint(seq int) attribute.KeyValue {
	return attribute.Int(AttrWaypoint, seq)
}

// WaypointCount returns an attribute for the total mission item count.
func WaypointCount(n int) attribute.KeyValue {
	return attribute.Int(AttrWaypointCount, n)
}

// Progress returns an attribute for mission completion percentage.
func Progress(pct float64) attribute.KeyValue {
	return attribute.Float64(AttrProgress, pct)
}

// TargetID returns an attribute for a spray target identifier.
func TargetID(id string) attribute.KeyValue {
	return attribute.String(AttrTargetID, id)
}

// DetectionID returns an attribute for a detection identifier.
func DetectionID(id string) attribute.KeyValue {
	return attribute.String(AttrDetectionID, id)
}

// TankVolume returns an attribute for the current tank volume.
func TankVolume(v float64) attribute.KeyValue {
	return attribute.Float64(AttrTankVolume, v)
}

// TankCapacity returns an attribute for the tank's full capacity.
func TankCapacity(v float64) attribute.KeyValue {
	return attribute.Float64(AttrTankCapacity, v)
}

// SessionID returns an attribute for an operator-channel session identifier.
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// ClientIP returns an attribute for an operator client's IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// EventName returns an attribute for an operator-channel event name.
func EventName(name string) attribute.KeyValue {
	return attribute.String(AttrEventName, name)
}

// StartLinkSpan starts a span for a link-level operation on a vehicle.
func StartLinkSpan(ctx context.Context, operation string, vehicleID int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{VehicleID(vehicleID)}, attrs...)
	return StartSpan(ctx, "link."+operation, trace.WithAttributes(allAttrs...))
}

// StartCommandSpan starts a span for dispatching a symbolic command to a vehicle.
func StartCommandSpan(ctx context.Context, vehicleID int, command string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{VehicleID(vehicleID), Command(command)}, attrs...)
	return StartSpan(ctx, SpanCommandExecute, trace.WithAttributes(allAttrs...))
}

// StartMissionSpan starts a span for a mission operation.
func StartMissionSpan(ctx context.Context, operation string, vehicleID int, missionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{VehicleID(vehicleID), MissionID(missionID)}, attrs...)
	return StartSpan(ctx, "mission."+operation, trace.WithAttributes(allAttrs...))
}

// StartSpraySpan starts a span for a spray-orchestration operation.
func StartSpraySpan(ctx context.Context, operation string, vehicleID int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{VehicleID(vehicleID)}, attrs...)
	return StartSpan(ctx, "spray."+operation, trace.WithAttributes(allAttrs...))
}

// StartOperatorSpan starts a span for an operator-channel event.
func StartOperatorSpan(ctx context.Context, operation string, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{SessionID(sessionID)}, attrs...)
	return StartSpan(ctx, "operator."+operation, trace.WithAttributes(allAttrs...))
}
