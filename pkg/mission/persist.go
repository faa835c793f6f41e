package mission

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aerobridge/groundctl/pkg/snapshot"
)

// Metadata is written as metadata.json in a completed mission's directory
// (§6.5 persisted state).
type Metadata struct {
	MissionID   string    `json:"mission_id"`
	VehicleID   int       `json:"vehicle_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Altitude    float64   `json:"altitude"`
	Speed       float64   `json:"speed"`
	Area        float64   `json:"area"`
	WaypointCnt int       `json:"waypoint_count"`
	Detections  int       `json:"detection_count"`
}

// Store writes per-mission metadata and telemetry log artifacts to
// stateDir/<mission_id>/ on mission completion (§6.5). No in-flight
// persistence is required — Store is called once, after the mission ends.
type Store struct {
	stateDir string
}

// NewStore builds a Store rooted at stateDir (§6.4 mission.state_dir).
func NewStore(stateDir string) *Store {
	return &Store{stateDir: stateDir}
}

// Complete writes metadata.json and telemetry.csv for one finished mission.
func (s *Store) Complete(meta Metadata, telemetry []snapshot.Snapshot) error {
	dir := filepath.Join(s.stateDir, meta.MissionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mission persist: mkdir %s: %w", dir, err)
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("mission persist: marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("mission persist: write metadata: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return fmt.Errorf("mission persist: create telemetry.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"timestamp", "lat", "lon", "alt", "heading", "pitch", "roll",
		"groundspeed", "battery_voltage", "battery_percent", "mode", "armed", "satellites", "hdop"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("mission persist: write csv header: %w", err)
	}

	for _, snap := range telemetry {
		row := []string{
			snap.LastUpdate.Format(time.RFC3339Nano),
			strconv.FormatFloat(snap.Lat, 'f', -1, 64),
			strconv.FormatFloat(snap.Lon, 'f', -1, 64),
			strconv.FormatFloat(snap.AltitudeRelative, 'f', -1, 64),
			strconv.FormatFloat(snap.HeadingDegrees, 'f', -1, 64),
			strconv.FormatFloat(snap.PitchDeg, 'f', -1, 64),
			strconv.FormatFloat(snap.RollDeg, 'f', -1, 64),
			strconv.FormatFloat(snap.GroundSpeed, 'f', -1, 64),
			strconv.FormatFloat(snap.BatteryVoltage, 'f', -1, 64),
			strconv.Itoa(int(snap.BatteryPercent)),
			snap.FlightMode,
			strconv.FormatBool(snap.Armed),
			strconv.Itoa(int(snap.Satellites)),
			strconv.FormatFloat(snap.HDOP, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("mission persist: write csv row: %w", err)
		}
	}
	return nil
}
