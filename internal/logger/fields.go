package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the vehicle bridge.
// Use these keys consistently so log aggregation and querying stays uniform
// across link, telemetry, command, mission, orchestrator, and spray code.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Vehicle identity
	// ========================================================================
	KeyVehicleID = "vehicle_id"
	KeyEndpoint  = "endpoint"
	KeyBaud      = "baud"
	KeySystemID  = "system_id"
	KeyCompID    = "component_id"

	// ========================================================================
	// Link state
	// ========================================================================
	KeyLinkState  = "link_state"
	KeyMessageID  = "message_id"
	KeySequence   = "sequence"
	KeyFrameError = "frame_error"

	// ========================================================================
	// Commands
	// ========================================================================
	KeyCommand    = "command"
	KeyAckResult  = "ack_result"
	KeyMode       = "mode"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	// ========================================================================
	// Missions
	// ========================================================================
	KeyMissionID   = "mission_id"
	KeyWaypoint    = "waypoint_seq"
	KeyWaypointCnt = "waypoint_count"
	KeyProgress    = "progress_percent"

	// ========================================================================
	// Spray
	// ========================================================================
	KeyTargetID     = "target_id"
	KeyDetectionID  = "detection_id"
	KeyTankVolume   = "tank_volume"
	KeyTankCapacity = "tank_capacity"

	// ========================================================================
	// Operator channel
	// ========================================================================
	KeySessionID = "session_id"
	KeyClientIP  = "client_ip"
	KeyEventName = "event"

	// ========================================================================
	// Generic
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeySource     = "source"
)

// VehicleID returns a slog.Attr for a vehicle identifier.
func VehicleID(id int) slog.Attr {
	return slog.Int(KeyVehicleID, id)
}

// Endpoint returns a slog.Attr for a transport endpoint (port path or "simulated").
func Endpoint(ep string) slog.Attr {
	return slog.String(KeyEndpoint, ep)
}

// LinkState returns a slog.Attr for the link connection state.
func LinkState(state string) slog.Attr {
	return slog.String(KeyLinkState, state)
}

// MessageID returns a slog.Attr for a decoded MAVLink message id.
func MessageID(id uint32) slog.Attr {
	return slog.Any(KeyMessageID, id)
}

// Sequence returns a slog.Attr for the outgoing packet sequence counter.
func Sequence(seq uint8) slog.Attr {
	return slog.Any(KeySequence, seq)
}

// Command returns a slog.Attr for a symbolic command name.
func Command(cmd string) slog.Attr {
	return slog.String(KeyCommand, cmd)
}

// MissionID returns a slog.Attr for a mission identifier.
func MissionID(id string) slog.Attr {
	return slog.String(KeyMissionID, id)
}

// TargetID returns a slog.Attr for a spray target identifier.
func TargetID(id string) slog.Attr {
	return slog.String(KeyTargetID, id)
}

// DetectionID returns a slog.Attr for a detection identifier.
func DetectionID(id string) slog.Attr {
	return slog.String(KeyDetectionID, id)
}

// SessionID returns a slog.Attr for an operator-channel session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// ClientIP returns a slog.Attr for a client IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
