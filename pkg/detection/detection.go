// Package detection implements the Status-String Parser (C3): it scans
// status-text records for four pipe-delimited tagged record shapes and
// emits typed domain events, suppressing duplicate detection ids.
//
// The tag grammar (§4.3) is four fixed shapes split on "|" — reaching for a
// parser-combinator or regex-templating library buys nothing a strings.Split
// plus strconv pass doesn't already give cleanly, so this package is
// deliberately standard-library only.
package detection

import (
	"strconv"
	"strings"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
)

// EventKind identifies which of the four tagged record shapes an Event
// carries.
type EventKind string

const (
	EventDetection EventKind = "detection"
	EventSummary   EventKind = "detection_summary"
	EventImage     EventKind = "image_captured"
	EventPiStats   EventKind = "pi_stats"
)

// Detection is a DetectionEvent (§3): a payload-side observation at a
// ground coordinate, derived from a "DET|..." status record.
type Detection struct {
	DetectionID string
	Lat         float64
	Lon         float64
	Confidence  float64
	Area        int
	Source      string
	VehicleID   int
	Timestamp   time.Time
}

// Summary is a "DSTAT|..." detection-summary record.
type Summary struct {
	Total     int
	Active    int
	MissionID string
	VehicleID int
	Timestamp time.Time
}

// Image is an "IMG|..." image-captured metadata record.
type Image struct {
	ImageID   string
	Lat       float64
	Lon       float64
	ImageType string
	MissionID string
	VehicleID int
	Timestamp time.Time
}

// PiStats is a "STAT|..." payload-host stats record.
type PiStats struct {
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
	TempC       float64
	VehicleID   int
	Timestamp   time.Time
}

// Event is one parsed tagged record, exactly one field populated per Kind.
type Event struct {
	Kind      EventKind
	Detection *Detection
	Summary   *Summary
	Image     *Image
	PiStats   *PiStats
}

// Parser scans status-text records for tagged payload events and suppresses
// duplicate detection ids with a bounded FIFO set (§4.3).
type Parser struct {
	dedup *fifoSet
}

// New builds a Parser with the configured dedup set capacity (§6.4
// detection_dedup_size, default 1000).
func New(dedupSize int) *Parser {
	if dedupSize <= 0 {
		dedupSize = 1000
	}
	return &Parser{dedup: newFIFOSet(dedupSize)}
}

// Parse scans one status-text line for a known tag and, on success, returns
// the typed Event. Unknown tags are not an error: the line is still a plain
// status message, already carried by the Telemetry Aggregator's ring, so
// Parse simply reports ok=false and the caller emits nothing further.
// Malformed known-tag records are dropped with a debug-level log, also
// returning ok=false.
func (p *Parser) Parse(vehicleID int, text string, ts time.Time) (Event, bool) {
	fields := strings.Split(text, "|")
	if len(fields) == 0 {
		return Event{}, false
	}

	switch fields[0] {
	case "DET":
		return p.parseDetection(vehicleID, fields, ts)
	case "DSTAT":
		return parseSummary(vehicleID, fields, ts)
	case "IMG":
		return parseImage(vehicleID, fields, ts)
	case "STAT":
		return parsePiStats(vehicleID, fields, ts)
	default:
		return Event{}, false
	}
}

func (p *Parser) parseDetection(vehicleID int, f []string, ts time.Time) (Event, bool) {
	// DET|<id>|<lat>|<lon>|<conf>|<area>
	if len(f) != 6 {
		logger.Debug("detection: malformed DET record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	id := f[1]
	lat, err1 := strconv.ParseFloat(f[2], 64)
	lon, err2 := strconv.ParseFloat(f[3], 64)
	conf, err3 := strconv.ParseFloat(f[4], 64)
	area, err4 := strconv.Atoi(f[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		logger.Debug("detection: non-numeric DET record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	if p.dedup.seenOrAdd(id) {
		return Event{}, false
	}
	return Event{
		Kind: EventDetection,
		Detection: &Detection{
			DetectionID: id,
			Lat:         lat,
			Lon:         lon,
			Confidence:  conf,
			Area:        area,
			Source:      "serial-link",
			VehicleID:   vehicleID,
			Timestamp:   ts,
		},
	}, true
}

func parseSummary(vehicleID int, f []string, ts time.Time) (Event, bool) {
	// DSTAT|<total>|<active>|<mission>
	if len(f) != 4 {
		logger.Debug("detection: malformed DSTAT record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	total, err1 := strconv.Atoi(f[1])
	active, err2 := strconv.Atoi(f[2])
	if err1 != nil || err2 != nil {
		logger.Debug("detection: non-numeric DSTAT record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	return Event{
		Kind: EventSummary,
		Summary: &Summary{
			Total:     total,
			Active:    active,
			MissionID: f[3],
			VehicleID: vehicleID,
			Timestamp: ts,
		},
	}, true
}

func parseImage(vehicleID int, f []string, ts time.Time) (Event, bool) {
	// IMG|<id>|<lat>|<lon>|<type>|<mission>
	if len(f) != 6 {
		logger.Debug("detection: malformed IMG record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	lat, err1 := strconv.ParseFloat(f[2], 64)
	lon, err2 := strconv.ParseFloat(f[3], 64)
	if err1 != nil || err2 != nil {
		logger.Debug("detection: non-numeric IMG record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	return Event{
		Kind: EventImage,
		Image: &Image{
			ImageID:   f[1],
			Lat:       lat,
			Lon:       lon,
			ImageType: f[4],
			MissionID: f[5],
			VehicleID: vehicleID,
			Timestamp: ts,
		},
	}, true
}

func parsePiStats(vehicleID int, f []string, ts time.Time) (Event, bool) {
	// STAT|<cpu>|<mem>|<disk>|<temp>
	if len(f) != 5 {
		logger.Debug("detection: malformed STAT record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	cpu, err1 := strconv.ParseFloat(f[1], 64)
	mem, err2 := strconv.ParseFloat(f[2], 64)
	disk, err3 := strconv.ParseFloat(f[3], 64)
	temp, err4 := strconv.ParseFloat(f[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		logger.Debug("detection: non-numeric STAT record", logger.VehicleID(vehicleID))
		return Event{}, false
	}
	return Event{
		Kind: EventPiStats,
		PiStats: &PiStats{
			CPUPercent:  cpu,
			MemPercent:  mem,
			DiskPercent: disk,
			TempC:       temp,
			VehicleID:   vehicleID,
			Timestamp:   ts,
		},
	}, true
}

// fifoSet is a bounded set with FIFO eviction (§3 duplicate-suppression
// invariant, §4.3 dedup eviction policy).
type fifoSet struct {
	capacity int
	order    []string
	present  map[string]struct{}
}

func newFIFOSet(capacity int) *fifoSet {
	return &fifoSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		present:  make(map[string]struct{}, capacity),
	}
}

// seenOrAdd reports whether id was already present, otherwise it records id
// and evicts the oldest entry once the set is at capacity.
func (s *fifoSet) seenOrAdd(id string) bool {
	if _, ok := s.present[id]; ok {
		return true
	}
	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.present, oldest)
	}
	s.order = append(s.order, id)
	s.present[id] = struct{}{}
	return false
}
