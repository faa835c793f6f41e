// Package orchestrator implements the Automated-Mission Orchestrator (C7):
// it sequences an operator "start mission" request into upload → pre-arm
// check → arm → guided → auto → running, streaming progress and mapping
// vehicle rejections to diagnostic messages.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/link"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/registry"
	"github.com/aerobridge/groundctl/pkg/snapshot"
)

// State is one node of the mission state machine (§4.7).
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateArming    State = "arming"
	StateGuided    State = "guided"
	StateAuto      State = "auto"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
)

// Pre-arm readiness thresholds (§4.7, flagged in SPEC_FULL/DESIGN as policy
// rather than protocol).
const (
	minFixType    = 3
	minSatellites = 8
	minBatteryV   = 10.5

	positionMismatchMeters = 10.0
	progressPollInterval   = 2 * time.Second
)

// AlreadyRunningError is returned by Start when the vehicle is not idle.
type AlreadyRunningError struct {
	VehicleID int
	State     State
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("orchestrator: vehicle %d already has a mission in state %s", e.VehicleID, e.State)
}

// Progress is one update on the orchestrator's progress stream (§4.7).
type Progress struct {
	MissionID        string
	VehicleID        int
	State            State
	Message          string
	ProgressPercent  float64
	PositionMismatch bool
	Err              error
}

type run struct {
	missionID  string
	state      State
	total      int
	cancel     context.CancelFunc
	startedAt  time.Time
	altitude   float64
	speed      float64
	area       float64
	waypoints  int
	detections int
	telemetry  []snapshot.Snapshot
}

// Orchestrator drives the C7 state machine against the Command Router and
// Mission Uploader.
type Orchestrator struct {
	reg      *registry.Registry
	router   *command.Router
	uploader *mission.Uploader
	store    *mission.Store

	mu   sync.Mutex
	runs map[int]*run

	subMu     sync.Mutex
	subs      map[int]chan Progress
	nextSubID int
}

// New builds an Orchestrator against the given collaborators. store may be
// nil, in which case completed missions are not persisted (§6.5).
func New(reg *registry.Registry, router *command.Router, uploader *mission.Uploader, store *mission.Store) *Orchestrator {
	return &Orchestrator{
		reg:      reg,
		router:   router,
		uploader: uploader,
		store:    store,
		runs:     make(map[int]*run),
		subs:     make(map[int]chan Progress),
	}
}

// Subscribe returns a channel of every Progress update emitted by any
// vehicle's mission run.
func (o *Orchestrator) Subscribe() (<-chan Progress, func()) {
	o.subMu.Lock()
	id := o.nextSubID
	o.nextSubID++
	ch := make(chan Progress, 128)
	o.subs[id] = ch
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		if existing, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(existing)
		}
		o.subMu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) publish(p Progress) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- p:
		default:
			logger.Debug("orchestrator: dropping progress update, subscriber backlogged", logger.VehicleID(p.VehicleID))
		}
	}
}

// Start sequences the full start-mission workflow for vehicleID (§4.7).
// area is the operator-supplied survey area in square metres, recorded in
// the persisted mission metadata only (§3 Mission); it plays no role in the
// upload or state machine.
func (o *Orchestrator) Start(ctx context.Context, vehicleID int, waypoints []mission.Waypoint, altitude, speed, area float64) (string, error) {
	if err := o.beginRun(vehicleID); err != nil {
		return "", err
	}

	missionID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	o.mu.Lock()
	if r, ok := o.runs[vehicleID]; ok {
		r.startedAt = time.Now()
		r.altitude = altitude
		r.speed = speed
		r.area = area
		r.waypoints = len(waypoints)
	}
	o.mu.Unlock()
	o.setState(vehicleID, missionID, StateUploading, 0)

	o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateUploading, Message: "uploading waypoints"})

	err := o.uploader.Upload(ctx, vehicleID, waypoints, altitude, func(p mission.Progress) {
		if p.Phase == "uploaded" {
			o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateUploading,
				Message: fmt.Sprintf("%d waypoints uploaded", len(waypoints))})
		}
	})
	if err != nil {
		o.fail(vehicleID, missionID, StateUploading, err)
		return "", err
	}

	total := len(waypoints) + 3
	o.setState(vehicleID, missionID, StateArming, total)

	o.preArmCheck(vehicleID)
	mismatch := o.positionMismatch(vehicleID, waypoints)

	if _, err := o.router.Execute(ctx, vehicleID, "arm", nil); err != nil {
		o.fail(vehicleID, missionID, StateArming, err)
		return "", err
	}
	o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateArming,
		Message: "armed", PositionMismatch: mismatch})

	o.setState(vehicleID, missionID, StateGuided, total)
	if _, err := o.router.SetModeByName(ctx, vehicleID, "GUIDED"); err != nil {
		o.fail(vehicleID, missionID, StateGuided, o.modeDiagnostic(vehicleID, err))
		return "", err
	}

	o.setState(vehicleID, missionID, StateAuto, total)
	if _, err := o.router.SetModeByName(ctx, vehicleID, "AUTO"); err != nil {
		o.fail(vehicleID, missionID, StateAuto, o.modeDiagnostic(vehicleID, err))
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	if r, ok := o.runs[vehicleID]; ok {
		r.state = StateRunning
		r.cancel = cancel
	}
	o.mu.Unlock()

	o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateRunning,
		Message: fmt.Sprintf("%d waypoints uploaded", len(waypoints)), ProgressPercent: 0})

	go o.pollProgress(runCtx, vehicleID, missionID, total)

	return missionID, nil
}

// pollProgress publishes progress every 2s from the latest mission-current
// index seen on the vehicle's Link event stream (§4.7 running:).
func (o *Orchestrator) pollProgress(ctx context.Context, vehicleID int, missionID string, total int) {
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	events, cancel := o.subscribeLink(vehicleID)
	defer cancel()

	current := 0
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Kind != link.EventMessage || e.Message == nil {
				continue
			}
			switch e.Message.Kind {
			case link.KindMissionCurrent:
				current = int(e.Message.MissionCurrent.Seq)
			case link.KindStatusText:
				if e.Message.StatusText != nil && strings.HasPrefix(e.Message.StatusText.Text, "DET|") {
					o.mu.Lock()
					if r, ok := o.runs[vehicleID]; ok {
						r.detections++
					}
					o.mu.Unlock()
				}
			}
		case <-ticker.C:
			pct := 0.0
			if total > 0 {
				pct = float64(current) / float64(total) * 100
			}
			if snap, err := o.reg.Snapshot(vehicleID); err == nil {
				o.mu.Lock()
				if r, ok := o.runs[vehicleID]; ok {
					r.telemetry = append(r.telemetry, snap)
				}
				o.mu.Unlock()
			}
			o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateRunning,
				ProgressPercent: pct})
			if current >= total-1 {
				o.finish(vehicleID, missionID)
				o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateStopped,
					Message: "mission complete", ProgressPercent: 100})
				return
			}
		}
	}
}

// finish persists the completed mission's metadata and telemetry log
// (§6.5) and drops the in-memory run record.
func (o *Orchestrator) finish(vehicleID int, missionID string) {
	o.mu.Lock()
	r, ok := o.runs[vehicleID]
	delete(o.runs, vehicleID)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.persist(vehicleID, missionID, r)
}

func (o *Orchestrator) persist(vehicleID int, missionID string, r *run) {
	if o.store == nil {
		return
	}
	meta := mission.Metadata{
		MissionID:   missionID,
		VehicleID:   vehicleID,
		StartedAt:   r.startedAt,
		EndedAt:     time.Now(),
		Altitude:    r.altitude,
		Speed:       r.speed,
		Area:        r.area,
		WaypointCnt: r.waypoints,
		Detections:  r.detections,
	}
	if err := o.store.Complete(meta, r.telemetry); err != nil {
		logger.Warn("orchestrator: failed to persist completed mission",
			logger.VehicleID(vehicleID), logger.MissionID(missionID), logger.Err(err))
	}
}

func (o *Orchestrator) subscribeLink(vehicleID int) (<-chan link.Event, func()) {
	l, err := o.reg.Link(vehicleID)
	if err != nil {
		ch := make(chan link.Event)
		close(ch)
		return ch, func() {}
	}
	return l.Subscribe()
}

// Stop transitions vehicleID's mission to stopped regardless of current
// state, setting loiter mode (§4.7 stop()).
func (o *Orchestrator) Stop(ctx context.Context, vehicleID int) error {
	_, err := o.router.SetModeByName(ctx, vehicleID, "LOITER")

	o.mu.Lock()
	r, ok := o.runs[vehicleID]
	if ok {
		if r.cancel != nil {
			r.cancel()
		}
		delete(o.runs, vehicleID)
	}
	o.mu.Unlock()

	if ok && r.missionID != "" {
		o.persist(vehicleID, r.missionID, r)
	}

	o.publish(Progress{VehicleID: vehicleID, State: StateStopped, Message: "mission stopped"})
	return err
}

// Pause sets loiter mode without clearing the run (§4.7 pause()).
func (o *Orchestrator) Pause(ctx context.Context, vehicleID int) error {
	_, err := o.router.SetModeByName(ctx, vehicleID, "LOITER")
	o.publish(Progress{VehicleID: vehicleID, State: StateRunning, Message: "mission paused"})
	return err
}

// Resume sets auto mode, continuing a paused mission (§4.7 resume()).
func (o *Orchestrator) Resume(ctx context.Context, vehicleID int) error {
	_, err := o.router.SetModeByName(ctx, vehicleID, "AUTO")
	o.publish(Progress{VehicleID: vehicleID, State: StateRunning, Message: "mission resumed"})
	return err
}

func (o *Orchestrator) beginRun(vehicleID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.runs[vehicleID]; ok && r.state != StateStopped {
		return &AlreadyRunningError{VehicleID: vehicleID, State: r.state}
	}
	o.runs[vehicleID] = &run{state: StateIdle}
	return nil
}

func (o *Orchestrator) setState(vehicleID int, missionID string, s State, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r, ok := o.runs[vehicleID]; ok {
		r.state = s
		r.missionID = missionID
		r.total = total
	}
}

func (o *Orchestrator) fail(vehicleID int, missionID string, s State, err error) {
	o.mu.Lock()
	delete(o.runs, vehicleID)
	o.mu.Unlock()
	o.publish(Progress{MissionID: missionID, VehicleID: vehicleID, State: StateIdle, Message: err.Error(), Err: err})
	logger.Warn("orchestrator: mission step failed", logger.VehicleID(vehicleID), logger.Err(err))
}

// preArmCheck logs non-blocking warnings for the pre-arm readiness
// heuristic (§4.7): it never fails the start() workflow by itself.
func (o *Orchestrator) preArmCheck(vehicleID int) {
	snap, err := o.reg.Snapshot(vehicleID)
	if err != nil {
		return
	}
	if snap.GPSFixType < minFixType {
		logger.Warn("orchestrator: pre-arm check: GPS fix below threshold", logger.VehicleID(vehicleID))
	}
	if snap.Satellites < minSatellites {
		logger.Warn("orchestrator: pre-arm check: satellite count below threshold", logger.VehicleID(vehicleID))
	}
	if snap.BatteryVoltage < minBatteryV {
		logger.Warn("orchestrator: pre-arm check: battery voltage below threshold", logger.VehicleID(vehicleID))
	}
	if snap.FlightMode == "" {
		logger.Warn("orchestrator: pre-arm check: flight mode unknown", logger.VehicleID(vehicleID))
	}
}

// positionMismatch reports whether the vehicle's current position is more
// than 10m from the first operator waypoint (§4.7 position-mismatch
// warning). It does not block the workflow; the caller surfaces the flag
// on the progress stream.
func (o *Orchestrator) positionMismatch(vehicleID int, waypoints []mission.Waypoint) bool {
	if len(waypoints) == 0 {
		return false
	}
	snap, err := o.reg.Snapshot(vehicleID)
	if err != nil {
		return false
	}
	dist := link.HaversineMeters(snap.Lat, snap.Lon, waypoints[0].Lat, waypoints[0].Lon)
	return dist > positionMismatchMeters
}

// modeDiagnostic names the current mode in the returned error, per §4.7
// "propagate a diagnostic naming current mode".
func (o *Orchestrator) modeDiagnostic(vehicleID int, cause error) error {
	snap, err := o.reg.Snapshot(vehicleID)
	if err != nil {
		return cause
	}
	return fmt.Errorf("mode change rejected; current mode is %s: %w", snap.FlightMode, cause)
}
