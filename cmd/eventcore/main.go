// Package main is the entry point for the catalog's event processing
// core. It drains change-data-capture messages for the events table and
// executes each event's side effects while honoring intra-operation
// ordering and de-duplication.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jtejido-quollio/qdic-assets/internal/assetstore"
	"github.com/jtejido-quollio/qdic-assets/internal/broker"
	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/config"
	"github.com/jtejido-quollio/qdic-assets/internal/eventstore"
	"github.com/jtejido-quollio/qdic-assets/internal/handlers"
	"github.com/jtejido-quollio/qdic-assets/internal/metrics"
	"github.com/jtejido-quollio/qdic-assets/internal/opsserver"
	"github.com/jtejido-quollio/qdic-assets/internal/processor"
	"github.com/jtejido-quollio/qdic-assets/internal/runtime"
	"github.com/jtejido-quollio/qdic-assets/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	}).With().Str("app", cfg.AppName).Logger()

	log.Info().Str("env", cfg.Env).Msg("Starting event processing core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}

	events, err := eventstore.NewPostgres(ctx, eventstore.Config{DSN: cfg.DatabaseURL})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to event store")
	}
	defer events.Close()
	assets := assetstore.NewPostgres(events.DB())

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	met := metrics.New(promReg)

	registry := handlers.NewRegistry(log)
	handlers.RegisterDefaults(registry, assets)

	pool := processor.New(events, registry, clk, processor.Config{
		Workers:               cfg.ProcessorWorkers,
		QueueCapacityFactor:   cfg.QueueCapacityFactor,
		DependencyPollTimeout: cfg.DependencyPollTimeout,
		PollInterval:          cfg.PollInterval,
		RevisibilityDelay:     cfg.RevisibilityDelay,
		MaxRetryCount:         cfg.MaxRetryCount,
	})
	pool.SetLogger(log)
	pool.SetMetrics(met)

	consumers := broker.NewConsumerPool(broker.Config{
		URL:     cfg.RabbitMQURL,
		Queue:   cfg.RabbitMQEventsQueue,
		Workers: cfg.ConsumerWorkers,
	}, pool, clk)
	consumers.SetLogger(log)
	consumers.SetMetrics(met)

	rt := runtime.New(pool, consumers, log)
	rt.Start(ctx)

	ops := opsserver.New(cfg.OpsAddr, promReg, rt, log)
	ops.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	drained := make(chan struct{})
	go func() {
		rt.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Runtime drain exceeded shutdown timeout")
	}
	if err := ops.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ops server shutdown failed")
	}
	cancel()

	log.Info().Msg("Shutdown complete")
}
