package config

import "time"

// GetDefaultConfig returns a fully-populated Config with every default
// applied and no vehicles configured.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg with their defaults. It
// is safe to call on a partially-populated Config decoded from file/env.
func ApplyDefaults(cfg *Config) {
	applyLinkDefaults(&cfg.Link)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyCommandDefaults(&cfg.Command)
	applyMissionDefaults(&cfg.Mission)
	applyDetectionDefaults(&cfg.Detection)
	applySprayDefaults(&cfg.Spray)
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyTracingDefaults(&cfg.Tracing)
	applyProfilingDefaults(&cfg.Profiling)

	for i := range cfg.Vehicles {
		if cfg.Vehicles[i].Baud == 0 {
			cfg.Vehicles[i].Baud = 57600
		}
	}
}

func applyLinkDefaults(c *LinkConfig) {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 1 * time.Second
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 3 * time.Second
	}
}

func applyTelemetryDefaults(c *TelemetryConfig) {
	if c.PollInterval == 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.StatusRingSize == 0 {
		c.StatusRingSize = 20
	}
}

func applyCommandDefaults(c *CommandConfig) {
	if c.AckTimeout == 0 {
		c.AckTimeout = 3 * time.Second
	}
}

func applyMissionDefaults(c *MissionConfig) {
	if c.ItemTimeout == 0 {
		c.ItemTimeout = 3 * time.Second
	}
	if c.ItemRetries == 0 {
		c.ItemRetries = 3
	}
	if c.StateDir == "" {
		c.StateDir = filepathJoinConfigDir("missions")
	}
}

func applyDetectionDefaults(c *DetectionConfig) {
	if c.DedupSize == 0 {
		c.DedupSize = 1000
	}
}

func applySprayDefaults(c *SprayConfig) {
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
		c.SprayAltitude = 5.0
	}
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

func applyServerDefaults(c *ServerConfig) {
	if c.APIAddr == "" {
		c.APIAddr = ":8080"
	}
	if c.OperatorAddr == "" {
		c.OperatorAddr = ":8090"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func applyMetricsDefaults(c *MetricsConfig) {
	if c.Addr == "" {
		c.Addr = ":9090"
	}
}

func applyTracingDefaults(c *TracingConfig) {
	if c.OTLPEndpoint == "" {
		c.OTLPEndpoint = "localhost:4317"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 0.1
	}
}

func applyProfilingDefaults(c *ProfilingConfig) {
	if c.ServerAddress == "" {
		c.ServerAddress = "http://localhost:4040"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "groundctl"
	}
}

func filepathJoinConfigDir(sub string) string {
	return getConfigDir() + "/" + sub
}
