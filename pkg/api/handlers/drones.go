package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/metrics"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/orchestrator"
	"github.com/aerobridge/groundctl/pkg/registry"
	"github.com/aerobridge/groundctl/pkg/spray"
)

// DroneHandler implements the diagnostic HTTP surface (§6.3): thin
// adapters over the Vehicle Registry, Command Router, Mission Uploader,
// Automated-Mission Orchestrator, and Spray Orchestrator, sharing their
// logic with the operator channel rather than duplicating it.
type DroneHandler struct {
	reg       *registry.Registry
	router    *command.Router
	uploader  *mission.Uploader
	missions  *orchestrator.Orchestrator
	sprayOrch *spray.Orchestrator
}

// NewDroneHandler builds a DroneHandler against its collaborators.
func NewDroneHandler(reg *registry.Registry, router *command.Router, uploader *mission.Uploader, missions *orchestrator.Orchestrator, sprayOrch *spray.Orchestrator) *DroneHandler {
	return &DroneHandler{reg: reg, router: router, uploader: uploader, missions: missions, sprayOrch: sprayOrch}
}

// droneRow is one entry of the GET /drones list response.
type droneRow struct {
	ID        int    `json:"id"`
	Connected bool   `json:"connected"`
	Telemetry any    `json:"telemetry,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
}

// List handles GET /drones (§6.3).
func (h *DroneHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.reg.List()
	rows := make([]droneRow, 0, len(summaries))
	for _, s := range summaries {
		row := droneRow{ID: s.VehicleID, Connected: s.Connected}
		if !s.LastSeen.IsZero() {
			row.LastSeen = s.LastSeen.Format("2006-01-02T15:04:05Z07:00")
		}
		if snap, err := h.reg.Snapshot(s.VehicleID); err == nil {
			row.Telemetry = snap
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"drones": rows})
}

func vehicleIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

type waypointBody struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

func (wp waypointBody) toMission(seq int) mission.Waypoint {
	return mission.Waypoint{Lat: wp.Lat, Lon: wp.Lon, Alt: wp.Alt, Seq: seq}
}

// Arm handles POST /drone/{id}/arm.
func (h *DroneHandler) Arm(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "arm", nil)
}

// Disarm handles POST /drone/{id}/disarm.
func (h *DroneHandler) Disarm(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "disarm", nil)
}

// Takeoff handles POST /drone/{id}/takeoff, body {altitude}.
func (h *DroneHandler) Takeoff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Altitude float64 `json:"altitude"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	h.execute(w, r, "takeoff", map[string]float64{"altitude": body.Altitude})
}

// Land handles POST /drone/{id}/land.
func (h *DroneHandler) Land(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "land", nil)
}

// RTL handles POST /drone/{id}/rtl.
func (h *DroneHandler) RTL(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "rtl", nil)
}

// Goto handles POST /drone/{id}/goto, body {lat,lon,alt}.
func (h *DroneHandler) Goto(w http.ResponseWriter, r *http.Request) {
	var body waypointBody
	if !decodeJSONBody(w, r, &body) {
		return
	}
	h.execute(w, r, "goto", map[string]float64{"lat": body.Lat, "lon": body.Lon, "alt": body.Alt})
}

// Mode handles POST /drone/{id}/mode, body {mode}.
func (h *DroneHandler) Mode(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	_, err = h.router.SetModeByName(r.Context(), vehicleID, body.Mode)
	writeCommandResult(w, "mode", err)
}

func (h *DroneHandler) execute(w http.ResponseWriter, r *http.Request, symbolic string, params map[string]float64) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	_, err = h.router.Execute(r.Context(), vehicleID, symbolic, params)
	writeCommandResult(w, symbolic, err)
}

// UploadMission handles POST /drone/{id}/mission/upload, body
// {waypoints:[{lat,lon,alt}], altitude}.
func (h *DroneHandler) UploadMission(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	var body struct {
		Waypoints []waypointBody `json:"waypoints"`
		Altitude  float64        `json:"altitude"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	waypoints := make([]mission.Waypoint, len(body.Waypoints))
	for i, wp := range body.Waypoints {
		waypoints[i] = wp.toMission(i)
	}
	err = h.uploader.Upload(r.Context(), vehicleID, waypoints, body.Altitude, nil)
	writeCommandResult(w, "mission_upload", err)
}

// StartMission handles POST /drone/{id}/mission/start, body
// {waypoints:[{lat,lon,alt}], altitude, speed}.
func (h *DroneHandler) StartMission(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	var body struct {
		Waypoints []waypointBody `json:"waypoints"`
		Altitude  float64        `json:"altitude"`
		Speed     float64        `json:"speed"`
		Area      float64        `json:"area"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	waypoints := make([]mission.Waypoint, len(body.Waypoints))
	for i, wp := range body.Waypoints {
		waypoints[i] = wp.toMission(i)
	}
	missionID, err := h.missions.Start(r.Context(), vehicleID, waypoints, body.Altitude, body.Speed, body.Area)
	if err != nil {
		writeCommandResult(w, "mission_start", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": "mission_start", "mission_id": missionID})
}

// PauseMission handles POST /drone/{id}/mission/pause.
func (h *DroneHandler) PauseMission(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	writeCommandResult(w, "mission_pause", h.missions.Pause(r.Context(), vehicleID))
}

// ResumeMission handles POST /drone/{id}/mission/resume.
func (h *DroneHandler) ResumeMission(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	writeCommandResult(w, "mission_resume", h.missions.Resume(r.Context(), vehicleID))
}

// StopMission handles POST /drone/{id}/mission/stop.
func (h *DroneHandler) StopMission(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	writeCommandResult(w, "mission_stop", h.missions.Stop(r.Context(), vehicleID))
}

// MissionStatus handles GET /drone/{id}/mission/status.
func (h *DroneHandler) MissionStatus(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	snap, err := h.reg.Snapshot(vehicleID)
	if err != nil {
		writeCommandResult(w, "mission_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": "mission_status", "snapshot": snap})
}

// SprayQueue handles POST /drone/{id}/spray/queue, body
// {targets:[{detection_id,lat,lon,confidence}]}.
func (h *DroneHandler) SprayQueue(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	var body struct {
		Targets []struct {
			DetectionID string  `json:"detection_id"`
			Lat         float64 `json:"lat"`
			Lon         float64 `json:"lon"`
			Confidence  float64 `json:"confidence"`
		} `json:"targets"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	detections := make([]spray.DetectionInput, len(body.Targets))
	for i, t := range body.Targets {
		detections[i] = spray.DetectionInput{DetectionID: t.DetectionID, Lat: t.Lat, Lon: t.Lon, Confidence: t.Confidence}
	}
	queued := h.sprayOrch.QueueTargets(vehicleID, detections)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": "spray_queue_targets", "targets": queued})
}

// SprayStart handles POST /drone/{id}/spray/start.
func (h *DroneHandler) SprayStart(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	err = h.sprayOrch.Start(vehicleID)
	writeCommandResult(w, "spray_start", err)
}

// SprayStop handles POST /drone/{id}/spray/stop.
func (h *DroneHandler) SprayStop(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	h.sprayOrch.Stop(vehicleID)
	writeCommandResult(w, "spray_stop", nil)
}

// SprayTargetComplete handles POST /drone/{id}/spray/target_complete, body
// {target_id, success}.
func (h *DroneHandler) SprayTargetComplete(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	var body struct {
		TargetID string `json:"target_id"`
		Success  bool   `json:"success"`
	}
	if !decodeJSONBody(w, r, &body) {
		return
	}
	err = h.sprayOrch.TargetCompleted(vehicleID, body.TargetID, body.Success)
	writeCommandResult(w, "spray_target_complete", err)
}

// SprayRefillComplete handles POST /drone/{id}/spray/refill_complete.
func (h *DroneHandler) SprayRefillComplete(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	err = h.sprayOrch.RefillComplete(vehicleID)
	writeCommandResult(w, "spray_refill_complete", err)
}

// SprayClearQueue handles POST /drone/{id}/spray/clear_queue.
func (h *DroneHandler) SprayClearQueue(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	h.sprayOrch.ClearQueue(vehicleID)
	writeCommandResult(w, "spray_clear_queue", nil)
}

// SprayStatus handles GET /drone/{id}/spray/status.
func (h *DroneHandler) SprayStatus(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		BadRequest(w, "invalid vehicle id")
		return
	}
	m, ok := h.sprayOrch.Mission(vehicleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true, "command": "spray_status",
		"mission": m, "active": ok, "tank": h.sprayOrch.Tank(vehicleID),
	})
}

// writeCommandResult writes the §6.3 command envelope, mapping domain
// errors to 400, unknown-vehicle to 404, and everything else to 500.
func writeCommandResult(w http.ResponseWriter, command string, err error) {
	metrics.RecordCommand(command, err)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "command": command})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case isUnknownVehicle(err):
		status = http.StatusNotFound
	case isDomainError(err):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]any{"success": false, "command": command, "error": err.Error()})
}

func isUnknownVehicle(err error) bool {
	var e *registry.ErrUnknownVehicle
	return errors.As(err, &e)
}

// isDomainError reports whether err is one of the broker's own typed
// domain errors (§7 error kinds), as opposed to an unexpected internal
// failure.
func isDomainError(err error) bool {
	var notConnected *command.NotConnectedError
	var rejected *command.CommandRejectedError
	var unsupported *command.UnsupportedCommandError
	var emptyMission *mission.EmptyMissionError
	var uploadInProgress *mission.UploadInProgressError
	var uploadRejected *mission.UploadRejectedError
	var uploadTimeout *mission.UploadTimeoutError
	var alreadyRunning *orchestrator.AlreadyRunningError
	var noTargets *spray.NoTargetsError
	var missionActive *spray.MissionActiveError
	var tankInsufficient *spray.TankInsufficientError
	var noActiveMission *spray.NoActiveMissionError

	switch {
	case errors.As(err, &notConnected),
		errors.As(err, &rejected),
		errors.As(err, &unsupported),
		errors.As(err, &emptyMission),
		errors.As(err, &uploadInProgress),
		errors.As(err, &uploadRejected),
		errors.As(err, &uploadTimeout),
		errors.As(err, &alreadyRunning),
		errors.As(err, &noTargets),
		errors.As(err, &missionActive),
		errors.As(err, &tankInsufficient),
		errors.As(err, &noActiveMission):
		return true
	default:
		return false
	}
}
