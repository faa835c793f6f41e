package handlers

import (
	"net/http"

	"github.com/aerobridge/groundctl/pkg/registry"
)

// HealthHandler handles the unauthenticated liveness/readiness probes
// (§6.3 ambient stack).
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new health handler. registry may be nil, in
// which case readiness and vehicle health report unhealthy.
func NewHealthHandler(registry *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Liveness handles GET /health — always 200 OK while the process is up.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "groundctl",
	}))
}

// Readiness handles GET /health/ready: ready once at least one vehicle is
// configured.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	vehicles := h.registry.List()
	if len(vehicles) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no vehicles configured"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"vehicles": len(vehicles),
	}))
}

// VehicleHealth is the per-vehicle health row in the Vehicles response.
type VehicleHealth struct {
	VehicleID int    `json:"vehicle_id"`
	Status    string `json:"status"`
	Endpoint  string `json:"endpoint"`
}

// VehiclesResponse is the detailed per-vehicle health response.
type VehiclesResponse struct {
	Vehicles []VehicleHealth `json:"vehicles"`
}

// Vehicles handles GET /health/vehicles: per-vehicle link status, used to
// distinguish "the broker is up" from "every configured vehicle is
// actually connected".
func (h *HealthHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	resp := VehiclesResponse{Vehicles: make([]VehicleHealth, 0)}
	allConnected := true
	for _, v := range h.registry.List() {
		status := "disconnected"
		if v.Connected {
			status = "connected"
		} else {
			allConnected = false
		}
		resp.Vehicles = append(resp.Vehicles, VehicleHealth{VehicleID: v.VehicleID, Status: status, Endpoint: v.Endpoint})
	}

	if allConnected {
		writeJSON(w, http.StatusOK, healthyResponse(resp))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(resp))
	}
}
