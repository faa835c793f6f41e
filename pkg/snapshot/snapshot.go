// Package snapshot implements the Telemetry Aggregator (C2): it merges
// per-message Link updates into a per-vehicle Snapshot, owns the bounded
// status-string ring, and exposes a deep-copy read surface; a reader holds
// the read lock only while the copy is made.
package snapshot

import (
	"time"

	"github.com/aerobridge/groundctl/pkg/flightmode"
)

// StatusRecord is one entry in a Snapshot's status-string ring (§3).
type StatusRecord struct {
	Severity  uint8
	Text      string
	Timestamp time.Time
}

// Snapshot is the per-vehicle mutable telemetry record (§3). The zero
// value has zero position and an empty FlightMode; the Aggregator's New
// seeds FlightMode with flightmode.Name(0) ("STABILIZE") until the first
// heartbeat arrives.
type Snapshot struct {
	Lat             float64
	Lon             float64
	AltitudeAbsolute float64
	AltitudeRelative float64

	GPSFixType   uint8
	Satellites   uint8
	HDOP         float64

	RollDeg  float64
	PitchDeg float64
	YawDeg   float64

	BatteryVoltage float64
	BatteryCurrent float64
	BatteryPercent int8

	HeadingDegrees float64
	GroundSpeed    float64

	FlightMode string
	CustomMode uint32
	Armed      bool

	SystemStatus string

	StatusRing []StatusRecord

	LastUpdate time.Time
}

// Clone returns a deep copy suitable for handing to an unbounded number of
// concurrent readers (§4.2 polling-compatible read surface).
func (s Snapshot) Clone() Snapshot {
	out := s
	out.StatusRing = make([]StatusRecord, len(s.StatusRing))
	copy(out.StatusRing, s.StatusRing)
	return out
}
