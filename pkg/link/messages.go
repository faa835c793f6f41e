package link

import "time"

// Kind identifies the decoded shape carried by a Message.
type Kind string

const (
	KindHeartbeat      Kind = "heartbeat"
	KindGlobalPosition Kind = "global_position"
	KindAttitude       Kind = "attitude"
	KindVFRHUD         Kind = "vfr_hud"
	KindSysStatus      Kind = "sys_status"
	KindGPSRaw         Kind = "gps_raw"
	KindBatteryStatus  Kind = "battery_status"
	KindStatusText     Kind = "status_text"
	KindCommandAck     Kind = "command_ack"
	KindMissionRequest Kind = "mission_request"
	KindMissionAck     Kind = "mission_ack"
	KindMissionCurrent Kind = "mission_current"
)

// Heartbeat carries the flight-mode and arm state bits from a HEARTBEAT
// message. CustomMode is the autopilot-specific mode number; Armed is bit 7
// of base_mode (MAV_MODE_FLAG_SAFETY_ARMED).
type Heartbeat struct {
	CustomMode uint32
	Armed      bool
}

// GlobalPosition carries position and velocity already converted to
// decimal degrees, metres, and m/s (§4.1 units conversion).
type GlobalPosition struct {
	Lat             float64 // decimal degrees
	Lon             float64 // decimal degrees
	AltitudeAbs     float64 // metres, MSL
	AltitudeRel     float64 // metres, relative to home
	VelocityNorth   float64 // m/s
	VelocityEast    float64 // m/s
	VelocityDown    float64 // m/s
	HeadingDegrees  float64 // degrees
}

// Attitude carries roll/pitch/yaw already converted from radians to
// degrees.
type Attitude struct {
	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
}

// VFRHUD carries heading, ground speed and vertical speed from VFR_HUD.
type VFRHUD struct {
	HeadingDegrees float64
	GroundSpeed    float64 // m/s
	VerticalSpeed  float64 // m/s
}

// SysStatus carries battery and sensor-health fields from SYS_STATUS,
// voltage and current already converted to volts and amps.
type SysStatus struct {
	BatteryVoltage float64
	BatteryCurrent float64
	BatteryPercent int8
	SensorsHealthy bool
}

// GPSRaw carries fix type, satellite count, and HDOP from GPS_RAW_INT.
type GPSRaw struct {
	FixType    uint8
	Satellites uint8
	HDOP       float64
}

// BatteryStatus carries the remaining-percent field from BATTERY_STATUS,
// used as a fallback when SYS_STATUS is not sent by a given autopilot.
type BatteryStatus struct {
	RemainingPercent int8
}

// StatusText carries one STATUSTEXT line, severity 0-7 and text
// truncated by the autopilot to its own wire limit.
type StatusText struct {
	Severity uint8
	Text     string
}

// CommandAck carries a command-ack result for a previously sent
// command-long packet.
type CommandAck struct {
	Command uint16
	Result  uint8
}

// MissionRequest carries the sequence number the peer wants transmitted
// next during a mission upload handshake.
type MissionRequest struct {
	Seq uint16
}

// MissionAck terminates a mission upload handshake.
type MissionAck struct {
	Result uint8
}

// MissionCurrent reports the waypoint index currently being flown.
type MissionCurrent struct {
	Seq uint16
}

// Message is one decoded inbound packet, tagged by Kind with exactly one
// of the typed fields populated.
type Message struct {
	Kind          Kind
	SystemID      uint8
	ComponentID   uint8
	Sequence      uint8
	ReceivedAt    time.Time

	Heartbeat      *Heartbeat
	GlobalPosition *GlobalPosition
	Attitude       *Attitude
	VFRHUD         *VFRHUD
	SysStatus      *SysStatus
	GPSRaw         *GPSRaw
	BatteryStatus  *BatteryStatus
	StatusText     *StatusText
	CommandAck     *CommandAck
	MissionRequest *MissionRequest
	MissionAck     *MissionAck
	MissionCurrent *MissionCurrent
}

// MissionItem is the wire shape of one MISSION_ITEM_INT entry, already in
// the units the Link's SendMissionItem expects (degrees, metres).
type MissionItem struct {
	Seq          uint16
	Command      uint16
	Current      uint8
	Autocontinue uint8
	Param1       float32
	Param2       float32
	Param3       float32
	Param4       float32
	Lat          float64
	Lon          float64
	Alt          float32
}

// EventKind identifies the observable Link events (§4.1).
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventMessage      EventKind = "message"
	EventError        EventKind = "error"
)

// Event is one item from a Link's event stream.
type Event struct {
	Kind    EventKind
	Message *Message
	Err     error
}
