// Package config loads and validates the groundctl broker configuration.
//
// Configuration sources, in ascending precedence:
//  1. Built-in defaults
//  2. Configuration file (YAML, resolved via XDG config dir or --config)
//  3. Environment variables, prefixed GROUNDCTL_
//  4. CLI flags (applied by the caller after Load)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full groundctl broker configuration.
type Config struct {
	// Vehicles lists the vehicles known at startup. The Vehicle Registry
	// attempts to connect each of these on boot (§4.4 initialization policy).
	Vehicles []VehicleConfig `mapstructure:"vehicles" validate:"dive" yaml:"vehicles"`

	// Link controls heartbeat timing shared by every Link (§6.4).
	Link LinkConfig `mapstructure:"link" yaml:"link"`

	// Telemetry controls the operator-facing telemetry fan-out cadence and
	// the bounded status-string ring size (§6.4).
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Command controls the Command Router's acknowledgment timeout (§4.5).
	Command CommandConfig `mapstructure:"command" yaml:"command"`

	// Mission controls the Mission Uploader's per-item timeout/retry policy
	// (§4.6) and the persisted mission artifact location (§6.5).
	Mission MissionConfig `mapstructure:"mission" yaml:"mission"`

	// Detection controls the Status-String Parser's duplicate-suppression
	// set size (§4.3).
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`

	// Spray controls the Spray Orchestrator's tank accounting and timing
	// (§4.8).
	Spray SprayConfig `mapstructure:"spray" yaml:"spray"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server controls the diagnostic HTTP listener, the operator-channel TCP
	// listener, and the graceful shutdown budget.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics controls the Prometheus metrics HTTP exposition.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Tracing controls OpenTelemetry OTLP-gRPC trace export.
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`

	// Profiling controls Grafana Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// VehicleConfig identifies one configured vehicle (§6.4 vehicles[]).
type VehicleConfig struct {
	// ID is the integer vehicle identifier.
	ID int `mapstructure:"id" validate:"required" yaml:"id"`

	// Endpoint is the serial port path (e.g. /dev/ttyUSB0, COM5) or the
	// literal string "simulated".
	Endpoint string `mapstructure:"endpoint" validate:"required" yaml:"endpoint"`

	// Baud is the serial baud rate.
	Baud int `mapstructure:"baud" yaml:"baud"`
}

// LinkConfig controls Link-level heartbeat timing (§4.1, §6.4).
type LinkConfig struct {
	// HeartbeatInterval is the outbound heartbeat send period.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	// HeartbeatTimeout is the inbound silence budget before a Link
	// transitions to disconnected.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
}

// TelemetryConfig controls the Telemetry Aggregator's operator-facing
// fan-out cadence and status ring size.
type TelemetryConfig struct {
	// PollInterval is the operator-facing telemetry fan-out period.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// StatusRingSize is the bounded capacity of the per-vehicle status-string
	// ring.
	StatusRingSize int `mapstructure:"status_ring_size" validate:"omitempty,gt=0" yaml:"status_ring_size"`
}

// CommandConfig controls the Command Router.
type CommandConfig struct {
	// AckTimeout is the maximum time to await a command-ack before failing
	// with CommandRejected.
	AckTimeout time.Duration `mapstructure:"ack_timeout" yaml:"ack_timeout"`
}

// MissionConfig controls the Mission Uploader and persisted mission state.
type MissionConfig struct {
	// ItemTimeout is the maximum time to await a mission-request before
	// retransmitting the last item.
	ItemTimeout time.Duration `mapstructure:"item_timeout" yaml:"item_timeout"`

	// ItemRetries is the number of retransmits attempted before failing with
	// UploadTimeout.
	ItemRetries int `mapstructure:"item_retries" validate:"omitempty,gte=0" yaml:"item_retries"`

	// StateDir is the root directory for persisted mission artifacts (§6.5).
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// DetectionConfig controls the Status-String Parser's duplicate suppression.
type DetectionConfig struct {
	// DedupSize is the bounded size of the detection-id duplicate-suppression
	// set.
	DedupSize int `mapstructure:"dedup_size" validate:"omitempty,gt=0" yaml:"dedup_size"`
}

// SprayConfig controls the Spray Orchestrator (§4.8).
type SprayConfig struct {
	// TankCapacity is the per-vehicle tank capacity in volume units.
	TankCapacity float64 `mapstructure:"tank_capacity" yaml:"tank_capacity"`

	// SprayVolumePerTarget is the volume consumed per completed spray.
	SprayVolumePerTarget float64 `mapstructure:"spray_volume_per_target" yaml:"spray_volume_per_target"`

	// RefillThreshold is the tank level at or below which the next target's
	// pre-check fails and a refill is requested.
	RefillThreshold float64 `mapstructure:"refill_threshold" yaml:"refill_threshold"`

	// SprayDurationSec is the loiter-and-spray duration per target.
	SprayDurationSec int `mapstructure:"spray_duration_sec" yaml:"spray_duration_sec"`

	// LoiterTimeSec is the pre-spray settle time.
	LoiterTimeSec int `mapstructure:"loiter_time_sec" yaml:"loiter_time_sec"`

	// SprayAltitude is the per-target altitude used when a target does not
	// carry its own.
	SprayAltitude float64 `mapstructure:"spray_altitude" yaml:"spray_altitude"`

	// AutoResumeAfterRefill controls whether the mission resumes
	// automatically once a refill completes.
	AutoResumeAfterRefill bool `mapstructure:"auto_resume_after_refill" yaml:"auto_resume_after_refill"`

	// RequireManualConfirmation controls whether the orchestrator waits for
	// an explicit operator confirmation before resuming post-refill.
	RequireManualConfirmation bool `mapstructure:"require_manual_confirmation" yaml:"require_manual_confirmation"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig controls process-level listeners and shutdown behavior.
type ServerConfig struct {
	// APIAddr is the diagnostic HTTP listen address (§6.3). ApplyDefaults
	// replaces an empty value with ":8080", so a loaded config always serves
	// the diagnostic HTTP routes.
	APIAddr string `mapstructure:"api_addr" yaml:"api_addr"`

	// OperatorAddr is the operator-channel TCP listen address (§6.2).
	OperatorAddr string `mapstructure:"operator_addr" validate:"required" yaml:"operator_addr"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP exposition are
	// active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Addr is the HTTP listen address for the /metrics endpoint.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig controls OpenTelemetry OTLP-gRPC trace export.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// OTLPEndpoint is the OTLP collector endpoint (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRatio is the trace sampling rate (0.0 to 1.0).
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"omitempty,gte=0,lte=1" yaml:"sample_ratio"`
}

// ProfilingConfig controls Grafana Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServerAddress is the Pyroscope server URL.
	ServerAddress string `mapstructure:"server_address" yaml:"server_address"`

	// ApplicationName is the name reported to Pyroscope.
	ApplicationName string `mapstructure:"application_name" yaml:"application_name"`
}

// Load loads configuration from file, environment, and defaults, applying
// defaults and validating the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when no
// config file exists at the requested (or default) location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  groundctl init\n\n"+
				"Or specify a custom config file:\n"+
				"  groundctl <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  groundctl init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("GROUNDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the duration decode hook used across the
// config tree. groundctl has no byte-sized configuration quantity, so only
// duration decoding is needed.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "groundctl")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "groundctl")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// `groundctl init` command).
func GetConfigDir() string {
	return getConfigDir()
}
