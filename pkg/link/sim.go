package link

import (
	"context"
	"math"
	"sync"
	"time"
)

// simTransport backs a Link with no real transport at all: it manufactures
// heartbeat, position, speed/heading, battery, GPS and mission-current
// updates at 1Hz (no attitude messages) and answers
// commands/mission handshakes immediately against an in-memory flight
// state (§4.1 simulated transport, §4.4 simulate()).
//
// It replies to the same mission handshake (mission-request / mission-ack)
// that a real vehicle would, so the Mission Uploader and Command Router
// run unmodified against it.
type simTransport struct {
	cfg Config

	mu    sync.Mutex
	state simState

	uploading    bool
	missionItems []MissionItem
	nextRequest  uint16

	onEvent func(Event)
}

type simState struct {
	armed        bool
	customMode   uint32
	lat, lon     float64
	homeLat      float64
	homeLon      float64
	altRel       float64
	targetAlt    float64
	targetLat    float64
	targetLon    float64
	heading      float64
	groundSpeed  float64
	voltage      float64
	batteryPct   int8
	missionIndex int
	flyingAuto   bool
}

const (
	simStartLat = 23.295000
	simStartLon = 85.310000
)

func newSimTransport(cfg Config) *simTransport {
	return &simTransport{
		cfg: cfg,
		state: simState{
			lat:        simStartLat,
			lon:        simStartLon,
			homeLat:    simStartLat,
			homeLon:    simStartLon,
			voltage:    12.6,
			batteryPct: 100,
			customMode: 0, // STABILIZE
		},
	}
}

func (t *simTransport) open(ctx context.Context, onEvent func(Event)) error {
	t.onEvent = onEvent
	go t.run(ctx)
	return nil
}

func (t *simTransport) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *simTransport) tick() {
	t.mu.Lock()
	s := &t.state
	if s.armed && s.altRel < s.targetAlt {
		s.altRel += 1.0
		if s.altRel > s.targetAlt {
			s.altRel = s.targetAlt
		}
	} else if !s.armed && s.altRel > 0 {
		s.altRel -= 1.0
		if s.altRel < 0 {
			s.altRel = 0
		}
	}
	if s.flyingAuto && s.missionIndex < len(t.missionItems)-1 {
		s.missionIndex++
		item := t.missionItems[s.missionIndex]
		s.lat, s.lon = item.Lat, item.Lon
	}
	if s.armed && s.batteryPct > 0 {
		s.voltage -= 0.001
	}
	lat, lon, alt, heading, gs, voltage, pct, mode, armed, missionIdx :=
		s.lat, s.lon, s.altRel, s.heading, s.groundSpeed, s.voltage, s.batteryPct, s.customMode, s.armed, s.missionIndex
	t.mu.Unlock()

	now := time.Now()
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindHeartbeat, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		Heartbeat: &Heartbeat{CustomMode: mode, Armed: armed},
	}})
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindGlobalPosition, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		GlobalPosition: &GlobalPosition{
			Lat: lat, Lon: lon, AltitudeAbs: alt + 50, AltitudeRel: alt,
			HeadingDegrees: heading,
		},
	}})
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindVFRHUD, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		VFRHUD: &VFRHUD{HeadingDegrees: heading, GroundSpeed: gs},
	}})
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindSysStatus, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		SysStatus: &SysStatus{BatteryVoltage: voltage, BatteryPercent: pct, SensorsHealthy: true},
	}})
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindGPSRaw, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		GPSRaw: &GPSRaw{FixType: 3, Satellites: 12, HDOP: 0.8},
	}})
	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindMissionCurrent, ReceivedAt: now, SystemID: 1, ComponentID: 1,
		MissionCurrent: &MissionCurrent{Seq: uint16(missionIdx)},
	}})
}

func (t *simTransport) emit(e Event) {
	if t.onEvent != nil {
		t.onEvent(e)
	}
}

func (t *simTransport) writeHeartbeat() error { return nil }

func (t *simTransport) writeCommandLong(cmd uint16, p1, p2, p3, p4, p5, p6, p7 float32) error {
	t.mu.Lock()
	s := &t.state
	switch cmd {
	case 400: // MAV_CMD_COMPONENT_ARM_DISARM
		s.armed = p1 == 1
	case 176: // MAV_CMD_DO_SET_MODE
		s.customMode = uint32(p2)
		s.flyingAuto = s.customMode == 3 // AUTO
	case 22: // MAV_CMD_NAV_TAKEOFF
		s.targetAlt = float64(p7)
	case 21: // MAV_CMD_NAV_LAND
		s.targetAlt = 0
	case 16: // MAV_CMD_NAV_WAYPOINT (goto, per §4.5 symbolic table)
		s.targetLat, s.targetLon = float64(p5), float64(p6)
		s.targetAlt = float64(p7)
		s.lat, s.lon = s.targetLat, s.targetLon
	}
	t.mu.Unlock()

	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindCommandAck, ReceivedAt: time.Now(), SystemID: 1, ComponentID: 1,
		CommandAck: &CommandAck{Command: cmd, Result: 0}, // MAV_RESULT_ACCEPTED
	}})
	return nil
}

func (t *simTransport) writeMissionCount(count uint16) error {
	t.mu.Lock()
	t.uploading = true
	t.missionItems = make([]MissionItem, 0, count)
	t.nextRequest = 0
	t.mu.Unlock()

	if count == 0 {
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind: KindMissionAck, ReceivedAt: time.Now(), SystemID: 1, ComponentID: 1,
			MissionAck: &MissionAck{Result: 0},
		}})
		return nil
	}

	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindMissionRequest, ReceivedAt: time.Now(), SystemID: 1, ComponentID: 1,
		MissionRequest: &MissionRequest{Seq: 0},
	}})
	return nil
}

func (t *simTransport) writeMissionItem(item MissionItem) error {
	t.mu.Lock()
	t.missionItems = append(t.missionItems, item)
	want := cap(t.missionItems)
	if want == 0 {
		want = len(t.missionItems)
	}
	done := len(t.missionItems) >= want
	next := uint16(len(t.missionItems))
	t.uploading = !done
	t.mu.Unlock()

	if done {
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind: KindMissionAck, ReceivedAt: time.Now(), SystemID: 1, ComponentID: 1,
			MissionAck: &MissionAck{Result: 0},
		}})
		return nil
	}

	t.emit(Event{Kind: EventMessage, Message: &Message{
		Kind: KindMissionRequest, ReceivedAt: time.Now(), SystemID: 1, ComponentID: 1,
		MissionRequest: &MissionRequest{Seq: next},
	}})
	return nil
}

func (t *simTransport) close() error { return nil }

// HaversineMeters computes the great-circle distance in metres between two
// lat/lon points, reused by the Automated-Mission Orchestrator's
// position-mismatch check (§4.7).
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
