package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/pkg/api/handlers"
	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/orchestrator"
	"github.com/aerobridge/groundctl/pkg/registry"
	"github.com/aerobridge/groundctl/pkg/spray"
)

// Deps bundles the collaborators the diagnostic HTTP surface adapts over.
// There is no authentication layer: these routes are for operator
// diagnostics on a trusted network, same trust boundary as the operator
// channel (§6.3).
type Deps struct {
	Registry  *registry.Registry
	Router    *command.Router
	Uploader  *mission.Uploader
	Missions  *orchestrator.Orchestrator
	SprayOrch *spray.Orchestrator
}

// NewRouter creates and configures the chi router with all middleware and
// routes (§6.3 diagnostic HTTP).
//
// Routes:
//   - GET /health, /health/ready, /health/vehicles - liveness/readiness
//   - GET /drones - vehicle list
//   - POST /drone/{id}/arm|disarm|takeoff|land|rtl|goto|mode - Command Router
//   - POST /drone/{id}/mission/upload|start|pause|resume|stop - Mission Uploader / Orchestrator
//   - GET /drone/{id}/mission/status - progress snapshot
//   - POST /drone/{id}/spray/* , GET /drone/{id}/spray/status - Spray Orchestrator
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := handlers.NewHealthHandler(d.Registry)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
		r.Get("/vehicles", health.Vehicles)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	drones := handlers.NewDroneHandler(d.Registry, d.Router, d.Uploader, d.Missions, d.SprayOrch)

	r.Get("/drones", drones.List)

	r.Route("/drone/{id}", func(r chi.Router) {
		r.Post("/arm", drones.Arm)
		r.Post("/disarm", drones.Disarm)
		r.Post("/takeoff", drones.Takeoff)
		r.Post("/land", drones.Land)
		r.Post("/rtl", drones.RTL)
		r.Post("/goto", drones.Goto)
		r.Post("/mode", drones.Mode)

		r.Route("/mission", func(r chi.Router) {
			r.Post("/upload", drones.UploadMission)
			r.Post("/start", drones.StartMission)
			r.Post("/pause", drones.PauseMission)
			r.Post("/resume", drones.ResumeMission)
			r.Post("/stop", drones.StopMission)
			r.Get("/status", drones.MissionStatus)
		})

		r.Route("/spray", func(r chi.Router) {
			r.Post("/queue", drones.SprayQueue)
			r.Post("/start", drones.SprayStart)
			r.Post("/stop", drones.SprayStop)
			r.Post("/target_complete", drones.SprayTargetComplete)
			r.Post("/refill_complete", drones.SprayRefillComplete)
			r.Post("/clear_queue", drones.SprayClearQueue)
			r.Get("/status", drones.SprayStatus)
		})
	})

	return r
}

// requestLogger logs every request via the internal logger: start at
// DEBUG, completion at INFO with status/duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("api: request started",
			logger.ClientIP(r.RemoteAddr),
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("api: request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.DurationMs(float64(time.Since(start).Microseconds())/1000),
		)
	})
}
