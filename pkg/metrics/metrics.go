// Package metrics exposes Prometheus instrumentation for the broker, one
// registry holding every domain counter and gauge rather than a set
// per adapter.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry

	vehiclesConnected *prometheus.GaugeVec
	commandsTotal     *prometheus.CounterVec
	missionEvents     *prometheus.CounterVec
	sprayEvents       *prometheus.CounterVec
	detectionsTotal   *prometheus.CounterVec
	tankLevel         *prometheus.GaugeVec
)

// Init creates a fresh registry and registers every groundctl metric. Calling
// Init with enable=false leaves the package in its disabled state, where every
// Record*/Set* call is a no-op.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable
	if !enable {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	vehiclesConnected = promauto.With(registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groundctl_vehicle_connected",
			Help: "Whether a vehicle link is currently connected (1) or not (0).",
		},
		[]string{"vehicle_id"},
	)
	commandsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundctl_commands_total",
			Help: "Commands dispatched through the Command Router, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
	missionEvents = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundctl_mission_events_total",
			Help: "Mission Orchestrator state transitions, by state.",
		},
		[]string{"state"},
	)
	sprayEvents = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundctl_spray_events_total",
			Help: "Spray Orchestrator events, by event kind.",
		},
		[]string{"event"},
	)
	detectionsTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundctl_detections_total",
			Help: "Detection events parsed from vehicle status text, by kind.",
		},
		[]string{"kind"},
	)
	tankLevel = promauto.With(registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groundctl_spray_tank_level",
			Help: "Current spray tank level in volume units, by vehicle.",
		},
		[]string{"vehicle_id"},
	)
}

// IsEnabled reports whether Init(true) has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Handler returns the HTTP handler serving the /metrics exposition, or nil
// when metrics are disabled.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func vehicleLabel(vehicleID int) string {
	return strconv.Itoa(vehicleID)
}

// SetVehicleConnected records a vehicle's current link state.
func SetVehicleConnected(vehicleID int, connected bool) {
	if !IsEnabled() {
		return
	}
	v := 0.0
	if connected {
		v = 1.0
	}
	vehiclesConnected.WithLabelValues(vehicleLabel(vehicleID)).Set(v)
}

// RecordCommand records a dispatched command and its outcome ("ok" or
// "error").
func RecordCommand(command string, err error) {
	if !IsEnabled() {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordMissionState records a Mission Orchestrator state transition.
func RecordMissionState(state string) {
	if !IsEnabled() {
		return
	}
	missionEvents.WithLabelValues(state).Inc()
}

// RecordSprayEvent records a Spray Orchestrator event.
func RecordSprayEvent(event string) {
	if !IsEnabled() {
		return
	}
	sprayEvents.WithLabelValues(event).Inc()
}

// RecordDetection records a parsed detection event.
func RecordDetection(kind string) {
	if !IsEnabled() {
		return
	}
	detectionsTotal.WithLabelValues(kind).Inc()
}

// SetTankLevel records a vehicle's current spray tank level.
func SetTankLevel(vehicleID int, level float64) {
	if !IsEnabled() {
		return
	}
	tankLevel.WithLabelValues(vehicleLabel(vehicleID)).Set(level)
}
