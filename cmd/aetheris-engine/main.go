package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aetherisstack/aetheris-engine/internal/api"
	"github.com/aetherisstack/aetheris-engine/internal/cache"
	"github.com/aetherisstack/aetheris-engine/internal/config"
	"github.com/aetherisstack/aetheris-engine/internal/engine"
	"github.com/aetherisstack/aetheris-engine/internal/fleet"
	"github.com/aetherisstack/aetheris-engine/internal/hub"
	"github.com/aetherisstack/aetheris-engine/internal/metrics"
	"github.com/aetherisstack/aetheris-engine/internal/models"
	"github.com/aetherisstack/aetheris-engine/internal/services"
	"github.com/aetherisstack/aetheris-engine/internal/simulator"
	"github.com/aetherisstack/aetheris-engine/internal/synth"
	"github.com/aetherisstack/aetheris-engine/internal/topics"
	"github.com/aetherisstack/aetheris-engine/internal/transport/mqtt"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting aetheris-engine",
		slog.String("broker", cfg.Broker.URL),
		slog.String("client_id", cfg.Broker.ClientID),
		slog.String("address", cfg.Server.Address),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NewMemoryProvider(nil)
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable, using in-memory cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	store := cache.NewFleetStore(cacheProvider, cfg.Cache.SnapshotTTL, cfg.Cache.AlertDedupTTL)
	defer store.Close()

	policy, err := hub.ParsePolicy(cfg.Events.OnFull)
	if err != nil {
		logger.Error("invalid event queue policy", slog.Any("error", err))
		os.Exit(1)
	}
	tracker := fleet.NewTracker(nil)
	queue := hub.NewEventQueue(cfg.Events.Buffer, policy, cfg.Events.BlockTimeout, logger)

	will, err := engine.OfflineWill(cfg.Broker.Source)
	if err != nil {
		logger.Error("failed to encode last will", slog.Any("error", err))
		os.Exit(1)
	}

	// Assigned before Connect, so the state handler never observes nil.
	var server *api.Server
	client := mqtt.New(mqtt.Config{
		BrokerURL:            cfg.Broker.URL,
		ClientID:             cfg.Broker.ClientID,
		Username:             cfg.Broker.Username,
		Password:             cfg.Broker.Password,
		KeepAlive:            cfg.Broker.KeepAlive,
		CleanSession:         cfg.Broker.CleanSession,
		ConnectTimeout:       cfg.Broker.ConnectTimeout,
		RetryInterval:        cfg.Broker.RetryInterval,
		MaxReconnectInterval: cfg.Broker.MaxReconnectInterval,
		PublishTimeout:       cfg.Broker.PublishTimeout,
		InboundBuffer:        cfg.Broker.InboundBuffer,
		Subscriptions:        topics.Subscriptions(),
		Will:                 &mqtt.Will{Topic: topics.SystemStatus, Payload: will},
	}, logger, mqtt.WithStateHandler(func(up bool) {
		metrics.SetBrokerConnected(up)
		server.SetServing(up)
	}))

	h := hub.New(client, tracker, queue,
		hub.WithSource(cfg.Broker.Source),
		hub.WithSynthesizer(synth.New()),
		hub.WithLogger(logger),
	)
	eng := engine.New(h, tracker, queue, engine.WithStore(store), engine.WithLogger(logger))
	monitor := fleet.NewMonitor(tracker, cfg.Fleet.HeartbeatTimeout, cfg.Fleet.SweepInterval, logger,
		fleet.WithObserver(eng.SweepObserver(ctx)),
	)

	fleetService := services.NewFleetService(logger, tracker, h)
	server, err = api.NewServer(cfg.Server, fleetService)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	engineDone := make(chan struct{})
	if err := client.Connect(ctx); err != nil {
		logger.Warn("broker connect aborted", slog.Any("error", err))
		close(engineDone)
	} else {
		go func() {
			eng.Run(ctx, client.Deliveries())
			close(engineDone)
		}()
		go monitor.Run(ctx)

		if cfg.Simulator.Enabled {
			sim := simulator.New(h,
				simulator.WithIntervals(cfg.Simulator.TelemetryInterval, cfg.Simulator.HeartbeatInterval),
				simulator.WithLogger(logger),
			)
			go sim.Run(ctx)
		}
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if client.Connected() {
		if err := h.PublishSystemStatus(shutdownCtx, eng.Status(models.EngineOffline)); err != nil {
			logger.Warn("offline status publish failed", slog.Any("error", err))
		}
	}
	server.Shutdown(shutdownCtx)
	client.Close(250 * time.Millisecond)

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		logger.Warn("event consumer did not drain before shutdown deadline")
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("aetheris-engine stopped")
}
