package operator

import "encoding/json"

// Inbound is one decoded client-to-broker command (§4.9 closed inbound
// set). VehicleID and Params carry the command-specific parameters; not
// every command uses every field.
type Inbound struct {
	Event     string             `json:"event"`
	VehicleID int                `json:"vehicle_id"`
	Params    map[string]float64 `json:"params,omitempty"`
	Mode      string             `json:"mode,omitempty"`
	Waypoints []InboundWaypoint  `json:"waypoints,omitempty"`
	Targets   []InboundDetection `json:"targets,omitempty"`
	TargetID  string             `json:"target_id,omitempty"`
	Success   bool               `json:"success,omitempty"`
}

// InboundWaypoint is one waypoint in a start_mission payload.
type InboundWaypoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// InboundDetection is one detection in a spray_queue_targets payload.
type InboundDetection struct {
	DetectionID string  `json:"detection_id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Confidence  float64 `json:"confidence"`
}

// The closed set of inbound event names (§4.9).
const (
	InArm                 = "arm"
	InDisarm              = "disarm"
	InSetMode             = "set_mode"
	InTakeoff             = "takeoff"
	InLand                = "land"
	InRTL                 = "rtl"
	InGoto                = "goto"
	InReconnect           = "reconnect"
	InSync                = "sync"
	InSimulate            = "simulate"
	InStartMission        = "start_mission"
	InPauseMission        = "pause_mission"
	InStopMission         = "stop_mission"
	InSprayQueueTargets   = "spray_queue_targets"
	InSprayStart          = "spray_start"
	InSprayStop           = "spray_stop"
	InSprayTargetComplete = "spray_target_complete"
	InSprayRefillComplete = "spray_refill_complete"
	InSprayClearQueue     = "spray_clear_queue"
	InRequestDroneList    = "request_drone_list"
)

// The closed set of outbound event names (§4.9).
const (
	OutDroneConnected       = "drone_connected"
	OutDroneDisconnected    = "drone_disconnected"
	OutDroneTelemetryUpdate = "drone_telemetry_update"
	OutDronesStatus         = "drones_status"
	OutCropDetection        = "crop_detection"
	OutDetectionStats       = "detection_stats"
	OutImageCaptured        = "image_captured"
	OutPiStats              = "pi_stats"
	OutMissionStarted       = "mission_started"
	OutMissionPaused        = "mission_paused"
	OutMissionStopped       = "mission_stopped"
	OutMissionStatus        = "mission_status"
	OutSprayMissionStarted  = "spray_mission_started"
	OutSprayMissionStopped  = "spray_mission_stopped"
	OutSprayMissionComplete = "spray_mission_complete"
	OutSprayRefillRequired  = "spray_refill_required"
	OutSprayRefillComplete  = "spray_refill_complete"
	OutSprayNextTarget      = "spray_next_target"
	OutSprayTargetComplete  = "spray_target_complete"
	OutSprayQueueUpdated    = "spray_queue_updated"
	OutCommandResult        = "command_result"
)

// Outbound is one broker-to-client event envelope. No schema versioning is
// required for the first iteration (§6.2).
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeOutbound(event string, data any) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Data: data})
}

// CommandResult is the payload of a command_result outbound event.
type CommandResult struct {
	Success bool   `json:"success"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
}
