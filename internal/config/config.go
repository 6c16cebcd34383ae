package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config captures everything required to boot the fleet engine.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Events    EventsConfig    `yaml:"events"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// BrokerConfig controls the MQTT session.
type BrokerConfig struct {
	URL                  string        `yaml:"url"`
	ClientID             string        `yaml:"clientID"`
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	KeepAlive            time.Duration `yaml:"keepAlive"`
	CleanSession         bool          `yaml:"cleanSession"`
	ConnectTimeout       time.Duration `yaml:"connectTimeout"`
	RetryInterval        time.Duration `yaml:"retryInterval"`
	MaxReconnectInterval time.Duration `yaml:"maxReconnectInterval"`
	PublishTimeout       time.Duration `yaml:"publishTimeout"`
	InboundBuffer        int           `yaml:"inboundBuffer"`
	// Source is stamped on envelopes the engine originates.
	Source string `yaml:"source"`
}

// FleetConfig controls liveness tracking.
type FleetConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeatTimeout"`
	SweepInterval    time.Duration `yaml:"sweepInterval"`
}

// EventsConfig sizes the hub event queue.
type EventsConfig struct {
	Buffer       int           `yaml:"buffer"`
	OnFull       string        `yaml:"onFull"`
	BlockTimeout time.Duration `yaml:"blockTimeout"`
}

// ServerConfig controls the gRPC and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls the Valkey-backed fleet snapshot and alert dedup.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TLS           bool          `yaml:"tls"`
	SnapshotTTL   time.Duration `yaml:"snapshotTTL"`
	AlertDedupTTL time.Duration `yaml:"alertDedupTTL"`
}

// SimulatorConfig controls the in-process mock fleet.
type SimulatorConfig struct {
	Enabled           bool          `yaml:"enabled"`
	TelemetryInterval time.Duration `yaml:"telemetryInterval"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AETHERIS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = "aetheris-engine-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.URL == "" {
		errs = append(errs, errors.New("broker.url is required"))
	}
	if c.Fleet.HeartbeatTimeout <= 0 {
		errs = append(errs, errors.New("fleet.heartbeatTimeout must be positive"))
	}
	if c.Fleet.SweepInterval <= 0 {
		errs = append(errs, errors.New("fleet.sweepInterval must be positive"))
	}
	if c.Events.Buffer <= 0 {
		errs = append(errs, errors.New("events.buffer must be positive"))
	}
	switch c.Events.OnFull {
	case "drop", "block":
	default:
		errs = append(errs, fmt.Errorf("events.onFull must be drop or block, got %q", c.Events.OnFull))
	}
	if c.Simulator.Enabled && (c.Simulator.TelemetryInterval <= 0 || c.Simulator.HeartbeatInterval <= 0) {
		errs = append(errs, errors.New("simulator intervals must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			URL:                  "tcp://localhost:1883",
			KeepAlive:            30 * time.Second,
			CleanSession:         true,
			ConnectTimeout:       10 * time.Second,
			RetryInterval:        5 * time.Second,
			MaxReconnectInterval: time.Minute,
			PublishTimeout:       5 * time.Second,
			InboundBuffer:        1024,
			Source:               "engine",
		},
		Fleet: FleetConfig{
			HeartbeatTimeout: 15 * time.Second,
			SweepInterval:    5 * time.Second,
		},
		Events: EventsConfig{
			Buffer:       100,
			OnFull:       "drop",
			BlockTimeout: time.Second,
		},
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			SnapshotTTL:   time.Minute,
			AlertDedupTTL: 10 * time.Minute,
		},
		Simulator: SimulatorConfig{
			Enabled:           false,
			TelemetryInterval: time.Second,
			HeartbeatInterval: 5 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Broker.URL, "AETHERIS_BROKER_URL")
	setString(&cfg.Broker.ClientID, "AETHERIS_BROKER_CLIENT_ID")
	setString(&cfg.Broker.Username, "AETHERIS_BROKER_USERNAME")
	setString(&cfg.Broker.Password, "AETHERIS_BROKER_PASSWORD")
	setString(&cfg.Broker.Source, "AETHERIS_BROKER_SOURCE")
	setDuration(&cfg.Broker.KeepAlive, "AETHERIS_BROKER_KEEP_ALIVE")
	setDuration(&cfg.Broker.RetryInterval, "AETHERIS_BROKER_RETRY_INTERVAL")
	setDuration(&cfg.Broker.PublishTimeout, "AETHERIS_BROKER_PUBLISH_TIMEOUT")
	setBool(&cfg.Broker.CleanSession, "AETHERIS_BROKER_CLEAN_SESSION")

	setDuration(&cfg.Fleet.HeartbeatTimeout, "AETHERIS_FLEET_HEARTBEAT_TIMEOUT")
	setDuration(&cfg.Fleet.SweepInterval, "AETHERIS_FLEET_SWEEP_INTERVAL")

	setInt(&cfg.Events.Buffer, "AETHERIS_EVENTS_BUFFER")
	setString(&cfg.Events.OnFull, "AETHERIS_EVENTS_ON_FULL")
	setDuration(&cfg.Events.BlockTimeout, "AETHERIS_EVENTS_BLOCK_TIMEOUT")

	setString(&cfg.Server.Address, "AETHERIS_SERVER_ADDRESS")
	setString(&cfg.Server.MetricsAddress, "AETHERIS_METRICS_ADDRESS")

	setString(&cfg.Logging.Level, "AETHERIS_LOG_LEVEL")
	if v := os.Getenv("AETHERIS_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	setBool(&cfg.Cache.Enabled, "AETHERIS_CACHE_ENABLED")
	setString(&cfg.Cache.Addr, "AETHERIS_CACHE_ADDR")
	setString(&cfg.Cache.Username, "AETHERIS_CACHE_USERNAME")
	setString(&cfg.Cache.Password, "AETHERIS_CACHE_PASSWORD")
	setInt(&cfg.Cache.DB, "AETHERIS_CACHE_DB")
	setBool(&cfg.Cache.TLS, "AETHERIS_CACHE_TLS")
	setInt(&cfg.Cache.MaxRetries, "AETHERIS_CACHE_MAX_RETRIES")
	setDuration(&cfg.Cache.SnapshotTTL, "AETHERIS_CACHE_SNAPSHOT_TTL")
	setDuration(&cfg.Cache.AlertDedupTTL, "AETHERIS_CACHE_ALERT_DEDUP_TTL")

	setBool(&cfg.Simulator.Enabled, "AETHERIS_SIMULATOR_ENABLED")
	setDuration(&cfg.Simulator.TelemetryInterval, "AETHERIS_SIMULATOR_TELEMETRY_INTERVAL")
	setDuration(&cfg.Simulator.HeartbeatInterval, "AETHERIS_SIMULATOR_HEARTBEAT_INTERVAL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
