package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/aetherisstack/aetheris-engine/internal/config"
	"github.com/aetherisstack/aetheris-engine/internal/hub"
	"github.com/aetherisstack/aetheris-engine/internal/simulator"
	"github.com/aetherisstack/aetheris-engine/internal/transport/mqtt"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// mock-fleet publishes simulated telemetry and heartbeats to a local broker
// so the engine can run without hardware.
func main() {
	var (
		configPath string
		brokerURL  string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&brokerURL, "broker", "", "Broker URL, overrides broker.url")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	if brokerURL != "" {
		cfg.Broker.URL = brokerURL
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := mqtt.New(mqtt.Config{
		BrokerURL:      cfg.Broker.URL,
		ClientID:       "aetheris-mock-fleet-" + uuid.NewString(),
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		KeepAlive:      cfg.Broker.KeepAlive,
		CleanSession:   true,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		RetryInterval:  cfg.Broker.RetryInterval,
		PublishTimeout: cfg.Broker.PublishTimeout,
	}, logger)
	defer client.Close(250 * time.Millisecond)

	if err := client.Connect(ctx); err != nil {
		logger.Error("broker connect aborted", slog.Any("error", err))
		return
	}

	// Publish-only hub: no tracker, no event queue.
	h := hub.New(client, nil, nil, hub.WithSource("mock-fleet"), hub.WithLogger(logger))
	sim := simulator.New(h,
		simulator.WithIntervals(cfg.Simulator.TelemetryInterval, cfg.Simulator.HeartbeatInterval),
		simulator.WithLogger(logger),
	)
	logger.Info("mock fleet publishing", slog.String("broker", cfg.Broker.URL), slog.Int("units", len(sim.Units())))
	sim.Run(ctx)
	logger.Info("mock fleet stopped")
}
