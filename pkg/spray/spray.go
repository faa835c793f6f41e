// Package spray implements the Spray Orchestrator (C8): it serializes
// detection-derived spray targets into a sequenced, refill-aware mission
// per vehicle, accounting for tank volume and pausing for operator-
// confirmed refills.
//
// Per-vehicle state is single-owner (§5): every operation against one
// vehicle's queue/mission/tank takes that vehicle's exclusive lock before
// touching state, so operator-channel dispatches never observe or mutate
// a half-updated run.
package spray

import (
	"fmt"
	"sync"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
)

// TargetState is one SprayTarget's lifecycle stage (§3).
type TargetState string

const (
	TargetQueued     TargetState = "queued"
	TargetDispensing TargetState = "dispensing"
	TargetCompleted  TargetState = "completed"
	TargetFailed     TargetState = "failed"
)

// MissionStatus is one SprayMission's lifecycle stage (§3).
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionRefilling MissionStatus = "refilling"
	MissionCompleted MissionStatus = "completed"
	MissionStopped   MissionStatus = "stopped"
)

// Target is a SprayTarget (§3).
type Target struct {
	ID             string
	DetectionID    string
	Lat            float64
	Lon            float64
	Altitude       float64
	RequiredVolume float64
	State          TargetState
	QueuedAt       time.Time
	SprayedAt      time.Time
	Confidence     float64
	Priority       int
}

// Mission is a per-vehicle SprayMission (§3).
type Mission struct {
	ID               string
	VehicleID        int
	Status           MissionStatus
	StartedAt        time.Time
	EndedAt          time.Time
	CurrentIndex     int
	Total            int
	Completed        int
	Failed           int
	RefillCount      int
}

// Tank is a per-vehicle TankState (§3). Invariant: 0 <= Current <= Capacity.
type Tank struct {
	Capacity           float64
	Current            float64
	RefillCount        int
	LastRefill         time.Time
	CumulativeDispensed float64
}

// Config controls the Spray Orchestrator's tank accounting and timing
// (§4.8 table).
type Config struct {
	TankCapacity              float64
	SprayVolumePerTarget      float64
	RefillThreshold           float64
	SprayDurationSec          int
	LoiterTimeSec             int
	SprayAltitude             float64
	AutoResumeAfterRefill     bool
	RequireManualConfirmation bool
}

func (c *Config) applyDefaults() {
	if c.TankCapacity == 0 {
		c.TankCapacity = 1000
	}
	if c.SprayVolumePerTarget == 0 {
		c.SprayVolumePerTarget = 50
	}
	if c.RefillThreshold == 0 {
		c.RefillThreshold = 100
	}
	if c.SprayDurationSec == 0 {
		c.SprayDurationSec = 3
	}
	if c.LoiterTimeSec == 0 {
		c.LoiterTimeSec = 5
	}
	if c.SprayAltitude == 0 {
		c.SprayAltitude = 5
	}
}

// safetyMargin is the extra volume above one target's requirement that
// Start requires before beginning a mission (§4.8 start()).
const safetyMargin = 0.0

// NoTargetsError is returned by Start when the queue is empty.
type NoTargetsError struct{ VehicleID int }

func (e *NoTargetsError) Error() string {
	return fmt.Sprintf("spray: vehicle %d has no targets queued", e.VehicleID)
}

// MissionActiveError is returned by Start when a mission is already active
// for the vehicle (§3 invariant: at most one active SprayMission).
type MissionActiveError struct{ VehicleID int }

func (e *MissionActiveError) Error() string {
	return fmt.Sprintf("spray: vehicle %d already has an active spray mission", e.VehicleID)
}

// TankInsufficientError is returned by Start when the tank cannot cover one
// target's required volume plus the safety margin.
type TankInsufficientError struct{ VehicleID int }

func (e *TankInsufficientError) Error() string {
	return fmt.Sprintf("spray: vehicle %d tank below required volume to start", e.VehicleID)
}

// NoActiveMissionError is returned by operations requiring an active
// mission when none exists.
type NoActiveMissionError struct{ VehicleID int }

func (e *NoActiveMissionError) Error() string {
	return fmt.Sprintf("spray: vehicle %d has no active spray mission", e.VehicleID)
}

// EventKind identifies one Spray Orchestrator progress event (§4.9).
type EventKind string

const (
	EventTargetsQueued   EventKind = "spray_queue_updated"
	EventMissionStarted  EventKind = "spray_mission_started"
	EventMissionStopped  EventKind = "spray_mission_stopped"
	EventMissionComplete EventKind = "spray_mission_complete"
	EventRefillRequired  EventKind = "spray_refill_required"
	EventRefillComplete  EventKind = "spray_refill_complete"
	EventNextTarget      EventKind = "spray_next_target"
	EventTargetComplete  EventKind = "spray_target_complete"
)

// Event is one update on the Spray Orchestrator's progress stream.
type Event struct {
	Kind             EventKind
	VehicleID        int
	Target           *Target
	Tank             Tank
	Mission          Mission
	TargetsRemaining int
}

// vehicleState is one vehicle's queue, tank, and active mission, guarded by
// its own lock so operations against different vehicles never contend.
type vehicleState struct {
	mu      sync.Mutex
	queue   []*Target
	tank    Tank
	mission *Mission
}

// Orchestrator implements C8 across any number of vehicles.
type Orchestrator struct {
	cfg Config

	mu     sync.Mutex
	states map[int]*vehicleState

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int

	idSeq int
	idMu  sync.Mutex
}

// New builds an Orchestrator with the configured defaults applied (§4.8).
func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:    cfg,
		states: make(map[int]*vehicleState),
		subs:   make(map[int]chan Event),
	}
}

// Subscribe returns a channel of every spray Event.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.subMu.Lock()
	id := o.nextSubID
	o.nextSubID++
	ch := make(chan Event, 128)
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

func (o *Orchestrator) publish(e Event) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- e:
		default:
			logger.Debug("spray: dropping event, subscriber backlogged", logger.VehicleID(e.VehicleID))
		}
	}
}

func (o *Orchestrator) vehicle(vehicleID int) *vehicleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.states[vehicleID]
	if !ok {
		v = &vehicleState{tank: Tank{Capacity: o.cfg.TankCapacity, Current: o.cfg.TankCapacity}}
		o.states[vehicleID] = v
	}
	return v
}

func (o *Orchestrator) nextTargetID() string {
	o.idMu.Lock()
	defer o.idMu.Unlock()
	o.idSeq++
	return fmt.Sprintf("target-%d", o.idSeq)
}

// DetectionInput is the minimal shape QueueTargets needs from a detection
// event (§4.8 queue_targets() converts detections into SprayTargets).
type DetectionInput struct {
	DetectionID string
	Lat         float64
	Lon         float64
	Confidence  float64
}

// QueueTargets converts detections into queued SprayTargets and appends
// them to vehicleID's FIFO queue (§4.8 queue_targets()).
func (o *Orchestrator) QueueTargets(vehicleID int, detections []DetectionInput) []Target {
	v := o.vehicle(vehicleID)
	v.mu.Lock()

	added := make([]Target, 0, len(detections))
	for _, d := range detections {
		t := &Target{
			ID:             o.nextTargetID(),
			DetectionID:    d.DetectionID,
			Lat:            d.Lat,
			Lon:            d.Lon,
			Altitude:       o.cfg.SprayAltitude,
			RequiredVolume: o.cfg.SprayVolumePerTarget,
			State:          TargetQueued,
			QueuedAt:       time.Now(),
			Confidence:     d.Confidence,
		}
		v.queue = append(v.queue, t)
		added = append(added, *t)
	}
	remaining := len(v.queue)
	v.mu.Unlock()

	o.publish(Event{Kind: EventTargetsQueued, VehicleID: vehicleID, TargetsRemaining: remaining})
	return added
}

// ClearQueue drops every queued (not yet dispensing) target (§4.8
// clear_queue invariant).
func (o *Orchestrator) ClearQueue(vehicleID int) {
	v := o.vehicle(vehicleID)
	v.mu.Lock()
	v.queue = nil
	v.mu.Unlock()
	o.publish(Event{Kind: EventTargetsQueued, VehicleID: vehicleID, TargetsRemaining: 0})
}

// Start begins executing vehicleID's queued targets (§4.8 start()).
func (o *Orchestrator) Start(vehicleID int) error {
	v := o.vehicle(vehicleID)
	v.mu.Lock()

	if v.mission != nil && v.mission.Status != MissionCompleted && v.mission.Status != MissionStopped {
		v.mu.Unlock()
		return &MissionActiveError{VehicleID: vehicleID}
	}
	if len(v.queue) == 0 {
		v.mu.Unlock()
		return &NoTargetsError{VehicleID: vehicleID}
	}
	if v.tank.Current < o.cfg.SprayVolumePerTarget+safetyMargin {
		v.mu.Unlock()
		return &TankInsufficientError{VehicleID: vehicleID}
	}

	v.mission = &Mission{
		ID:        fmt.Sprintf("spray-%d-%d", vehicleID, time.Now().UnixNano()),
		VehicleID: vehicleID,
		Status:    MissionActive,
		StartedAt: time.Now(),
		Total:     len(v.queue),
	}
	mission := *v.mission
	v.mu.Unlock()

	o.publish(Event{Kind: EventMissionStarted, VehicleID: vehicleID, Mission: mission})
	o.advance(vehicleID)
	return nil
}

// advance picks the target at the mission's current index, emitting
// refill_required if the tank can't cover it, else next_target (§4.8
// execution loop).
func (o *Orchestrator) advance(vehicleID int) {
	v := o.vehicle(vehicleID)
	v.mu.Lock()

	if v.mission == nil || v.mission.Status != MissionActive {
		v.mu.Unlock()
		return
	}
	if v.mission.CurrentIndex >= len(v.queue) {
		v.mission.Status = MissionCompleted
		v.mission.EndedAt = time.Now()
		mission := *v.mission
		v.mu.Unlock()
		o.publish(Event{Kind: EventMissionComplete, VehicleID: vehicleID, Mission: mission})
		return
	}

	target := v.queue[v.mission.CurrentIndex]

	if v.tank.Current <= o.cfg.RefillThreshold {
		v.mission.Status = MissionRefilling
		remaining := len(v.queue) - v.mission.CurrentIndex
		tank := v.tank
		v.mu.Unlock()
		o.publish(Event{Kind: EventRefillRequired, VehicleID: vehicleID, Tank: tank, TargetsRemaining: remaining})
		return
	}

	target.State = TargetDispensing
	targetCopy := *target
	v.mu.Unlock()

	o.publish(Event{Kind: EventNextTarget, VehicleID: vehicleID, Target: &targetCopy})
}

// TargetCompleted records the operator-signalled outcome of the currently
// dispensing target and advances the mission (§4.8, §9 Open Questions:
// completion is externally signalled, never assumed on a timer).
func (o *Orchestrator) TargetCompleted(vehicleID int, targetID string, success bool) error {
	v := o.vehicle(vehicleID)
	v.mu.Lock()

	if v.mission == nil || v.mission.Status != MissionActive {
		v.mu.Unlock()
		return &NoActiveMissionError{VehicleID: vehicleID}
	}
	idx := v.mission.CurrentIndex
	if idx >= len(v.queue) || v.queue[idx].ID != targetID {
		v.mu.Unlock()
		return fmt.Errorf("spray: target %q is not the active target for vehicle %d", targetID, vehicleID)
	}

	target := v.queue[idx]
	if success {
		target.State = TargetCompleted
		target.SprayedAt = time.Now()
		v.tank.Current -= o.cfg.SprayVolumePerTarget
		if v.tank.Current < 0 {
			v.tank.Current = 0
		}
		v.tank.CumulativeDispensed += o.cfg.SprayVolumePerTarget
		v.mission.Completed++
	} else {
		target.State = TargetFailed
		v.mission.Failed++
	}
	v.mission.CurrentIndex++
	targetCopy := *target
	v.mu.Unlock()

	o.publish(Event{Kind: EventTargetComplete, VehicleID: vehicleID, Target: &targetCopy})
	o.advance(vehicleID)
	return nil
}

// RefillComplete sets the tank to capacity and resumes execution if
// configured (§4.8 refill_complete()).
func (o *Orchestrator) RefillComplete(vehicleID int) error {
	v := o.vehicle(vehicleID)
	v.mu.Lock()

	if v.mission == nil || v.mission.Status != MissionRefilling {
		v.mu.Unlock()
		return &NoActiveMissionError{VehicleID: vehicleID}
	}
	v.tank.Current = v.tank.Capacity
	v.tank.RefillCount++
	v.tank.LastRefill = time.Now()
	v.mission.Status = MissionActive
	v.mission.RefillCount++
	tank := v.tank
	autoResume := o.cfg.AutoResumeAfterRefill
	v.mu.Unlock()

	o.publish(Event{Kind: EventRefillComplete, VehicleID: vehicleID, Tank: tank})
	if autoResume {
		o.advance(vehicleID)
	}
	return nil
}

// Stop terminates vehicleID's mission and clears its queue (§4.8 stop()).
func (o *Orchestrator) Stop(vehicleID int) {
	v := o.vehicle(vehicleID)
	v.mu.Lock()
	if v.mission != nil {
		v.mission.Status = MissionStopped
		v.mission.EndedAt = time.Now()
	}
	v.queue = nil
	v.mu.Unlock()

	o.publish(Event{Kind: EventMissionStopped, VehicleID: vehicleID})
}

// Tank returns a copy of vehicleID's current tank accounting.
func (o *Orchestrator) Tank(vehicleID int) Tank {
	v := o.vehicle(vehicleID)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tank
}

// Mission returns a copy of vehicleID's current mission, if any.
func (o *Orchestrator) Mission(vehicleID int) (Mission, bool) {
	v := o.vehicle(vehicleID)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mission == nil {
		return Mission{}, false
	}
	return *v.mission, true
}
