// Command groundctl runs the ground-control broker: it mediates between
// configured vehicles (serial MAVLink-family links) and browser operator
// clients over the operator channel and diagnostic HTTP API (§1, §2).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aerobridge/groundctl/internal/logger"
	"github.com/aerobridge/groundctl/internal/telemetry"
	"github.com/aerobridge/groundctl/pkg/api"
	"github.com/aerobridge/groundctl/pkg/command"
	"github.com/aerobridge/groundctl/pkg/config"
	"github.com/aerobridge/groundctl/pkg/detection"
	"github.com/aerobridge/groundctl/pkg/metrics"
	"github.com/aerobridge/groundctl/pkg/mission"
	"github.com/aerobridge/groundctl/pkg/operator"
	"github.com/aerobridge/groundctl/pkg/orchestrator"
	"github.com/aerobridge/groundctl/pkg/registry"
	"github.com/aerobridge/groundctl/pkg/spray"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `groundctl - autonomous vehicle ground-control broker

Usage:
  groundctl <command> [flags]

Commands:
  init     Write a sample configuration file
  start    Start the broker
  version  Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/groundctl/config.yaml)
  --force            Force overwrite an existing config file (init command only)

Examples:
  groundctl init
  groundctl start
  groundctl start --config /etc/groundctl/config.yaml

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: GROUNDCTL_<SECTION>_<KEY> (use underscores for nested keys)

  Example:
    GROUNDCTL_LOGGING_LEVEL=DEBUG groundctl start
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "start":
		runStart()
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("groundctl %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runInit() {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := initFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/groundctl/config.yaml)")
	force := initFlags.Bool("force", false, "Force overwrite an existing config file")
	if err := initFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	path := *configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if !*force {
		if _, err := os.Stat(path); err == nil {
			log.Fatalf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		log.Fatalf("failed to write config: %v", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to list your vehicles")
	fmt.Println("  2. Start the broker with: groundctl start")
}

func runStart() {
	startFlags := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := startFlags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/groundctl/config.yaml)")
	if err := startFlags.Parse(os.Args[2:]); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.MustLoad(*configFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "groundctl",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.OTLPEndpoint,
		Insecure:       true,
		SampleRate:     cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.Profiling.ApplicationName,
		ServiceVersion: version,
		Endpoint:       cfg.Profiling.ServerAddress,
	})
	if err != nil {
		log.Fatalf("failed to initialize profiling: %v", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	metrics.Init(cfg.Metrics.Enabled)

	logger.Info("groundctl starting", "version", version, "vehicles", len(cfg.Vehicles))

	reg := registry.New(registry.Config{
		HeartbeatInterval: cfg.Link.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Link.HeartbeatTimeout,
		StatusRingSize:    cfg.Telemetry.StatusRingSize,
	})
	defer reg.Close()

	for _, v := range cfg.Vehicles {
		if err := reg.Connect(ctx, v.ID, v.Endpoint, v.Baud); err != nil {
			logger.Warn("startup: failed to connect configured vehicle",
				logger.VehicleID(v.ID), logger.Err(err))
		}
	}

	router := command.New(reg, cfg.Command.AckTimeout)
	uploader := mission.New(reg, cfg.Mission.ItemTimeout, cfg.Mission.ItemRetries)
	store := mission.NewStore(cfg.Mission.StateDir)
	missions := orchestrator.New(reg, router, uploader, store)
	sprayOrch := spray.New(spray.Config{
		TankCapacity:              cfg.Spray.TankCapacity,
		SprayVolumePerTarget:      cfg.Spray.SprayVolumePerTarget,
		RefillThreshold:           cfg.Spray.RefillThreshold,
		SprayDurationSec:          cfg.Spray.SprayDurationSec,
		LoiterTimeSec:             cfg.Spray.LoiterTimeSec,
		SprayAltitude:             cfg.Spray.SprayAltitude,
		AutoResumeAfterRefill:     cfg.Spray.AutoResumeAfterRefill,
		RequireManualConfirmation: cfg.Spray.RequireManualConfirmation,
	})
	parser := detection.New(cfg.Detection.DedupSize)

	operatorChannel := operator.New(operator.Deps{
		Registry:              reg,
		Router:                router,
		Missions:              missions,
		Spray:                 sprayOrch,
		Parser:                parser,
		TelemetryPollInterval: cfg.Telemetry.PollInterval,
	})

	operatorListener, err := net.Listen("tcp", cfg.Server.OperatorAddr)
	if err != nil {
		log.Fatalf("failed to listen on operator channel address %s: %v", cfg.Server.OperatorAddr, err)
	}
	logger.Info("operator channel listening", "addr", cfg.Server.OperatorAddr)

	operatorDone := make(chan error, 1)
	go func() {
		operatorDone <- operatorChannel.Serve(ctx, operatorListener)
	}()

	var apiServer *api.Server
	if cfg.Server.APIAddr != "" {
		apiServer = api.NewServer(api.APIConfig{Port: apiPort(cfg.Server.APIAddr)}, api.Deps{
			Registry:  reg,
			Router:    router,
			Uploader:  uploader,
			Missions:  missions,
			SprayOrch: sprayOrch,
		})
	}

	apiDone := make(chan error, 1)
	if apiServer != nil {
		go func() { apiDone <- apiServer.Start(ctx) }()
	}

	if metrics.IsEnabled() && cfg.Metrics.Addr != "" {
		startMetricsServer(ctx, cfg.Metrics.Addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("groundctl is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-operatorDone:
		if err != nil {
			logger.Error("operator channel exited with error", "error", err)
		}
	case err := <-apiDone:
		if err != nil {
			logger.Error("API server exited with error", "error", err)
		}
	}
	cancel()

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	select {
	case <-operatorDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("operator channel did not drain before shutdown timeout")
	}

	logger.Info("groundctl stopped")
}

// apiPort extracts the TCP port from an address of the form ":8080" or
// "host:8080"; it falls back to 8080 when the address cannot be parsed.
func apiPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 8080
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port <= 0 {
		return 8080
	}
	return port
}

// startMetricsServer exposes /metrics on its own listener, separate from
// the diagnostic API (§6.4 metrics.addr), shutting down when ctx is
// cancelled.
func startMetricsServer(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr, Handler: metrics.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
