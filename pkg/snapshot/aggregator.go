package snapshot

import (
	"sync"
	"time"

	"github.com/aerobridge/groundctl/pkg/flightmode"
	"github.com/aerobridge/groundctl/pkg/link"
)

// Aggregator is the Telemetry Aggregator (C2) for one vehicle: it merges
// every decoded Link message into a single live Snapshot, never replacing
// it wholesale, and maintains the bounded status-string ring. It is the
// exclusive owner of the Snapshot; reads always return a deep copy taken
// under a read lock, so concurrent readers never block one another and hold
// up the writer only for the length of one copy (§4.2).
type Aggregator struct {
	ringSize int

	mu   sync.RWMutex
	snap Snapshot
}

// New builds an Aggregator with the configured status-ring capacity
// (§6.4 status_ring_size, default 20).
func New(ringSize int) *Aggregator {
	if ringSize <= 0 {
		ringSize = 20
	}
	return &Aggregator{
		ringSize: ringSize,
		snap:     Snapshot{FlightMode: flightmode.Name(0)},
	}
}

// Read returns a deep copy of the current Snapshot (§4.2 polling-compatible
// read surface).
func (a *Aggregator) Read() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Clone()
}

// Apply merges one decoded Link message into the Snapshot. Updates from a
// single Link must be applied in receive order (§4.2 ordering guarantee);
// the caller is responsible for driving Apply from a single goroutine per
// vehicle. When msg is a status-text message, Apply returns the appended
// StatusRecord and ok=true so the Status-String Parser (C3) can scan only
// the newly-appended entries.
func (a *Aggregator) Apply(msg *link.Message) (StatusRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.snap
	s.LastUpdate = time.Now()

	switch msg.Kind {
	case link.KindHeartbeat:
		h := msg.Heartbeat
		s.CustomMode = h.CustomMode
		s.FlightMode = flightmode.Name(h.CustomMode)
		s.Armed = h.Armed
	case link.KindGlobalPosition:
		p := msg.GlobalPosition
		s.Lat = p.Lat
		s.Lon = p.Lon
		s.AltitudeAbsolute = p.AltitudeAbs
		s.AltitudeRelative = p.AltitudeRel
		if p.HeadingDegrees != 0 {
			s.HeadingDegrees = p.HeadingDegrees
		}
	case link.KindAttitude:
		at := msg.Attitude
		s.RollDeg = at.RollDeg
		s.PitchDeg = at.PitchDeg
		s.YawDeg = at.YawDeg
	case link.KindVFRHUD:
		v := msg.VFRHUD
		s.HeadingDegrees = v.HeadingDegrees
		s.GroundSpeed = v.GroundSpeed
	case link.KindSysStatus:
		st := msg.SysStatus
		s.BatteryVoltage = st.BatteryVoltage
		s.BatteryCurrent = st.BatteryCurrent
		if st.BatteryPercent >= 0 {
			s.BatteryPercent = st.BatteryPercent
		}
		if st.SensorsHealthy {
			s.SystemStatus = "ACTIVE"
		} else {
			s.SystemStatus = "SENSOR_FAILURE"
		}
	case link.KindGPSRaw:
		g := msg.GPSRaw
		s.GPSFixType = g.FixType
		s.Satellites = g.Satellites
		s.HDOP = g.HDOP
	case link.KindBatteryStatus:
		// Fallback for autopilots that do not send SYS_STATUS (§3 Snapshot).
		if s.BatteryPercent == 0 && msg.BatteryStatus.RemainingPercent >= 0 {
			s.BatteryPercent = msg.BatteryStatus.RemainingPercent
		}
	case link.KindStatusText:
		rec := StatusRecord{
			Severity:  msg.StatusText.Severity,
			Text:      msg.StatusText.Text,
			Timestamp: msg.ReceivedAt,
		}
		s.StatusRing = append(s.StatusRing, rec)
		if len(s.StatusRing) > a.ringSize {
			s.StatusRing = s.StatusRing[len(s.StatusRing)-a.ringSize:]
		}
		return rec, true
	}
	return StatusRecord{}, false
}
