package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"eap/internal/person/app"
	"eap/internal/platform/config"
	"eap/internal/platform/httpserver"
	"eap/internal/platform/logger"
	"eap/pkg/platform/audit/worker"
)

const shutdownTimeout = 10 * time.Second

// main hosts the person core: schema, stores, the audit outbox relay and
// the ops endpoints. Person operations are invoked in-process or via eapctl.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("eapd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Audit.Brokers) > 0 {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Audit.Brokers...),
			kgo.ProducerBatchCompression(kgo.SnappyCompression()),
			kgo.RequiredAcks(kgo.AllISRAcks()),
		)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := worker.EnsureTopic(ctx, client, cfg.Audit.Topic, 3, 1); err != nil {
			return err
		}

		relay := worker.NewRelay(a.Outbox, client, cfg.Audit.Topic,
			worker.WithInterval(cfg.Audit.PollInterval),
			worker.WithBatchSize(cfg.Audit.BatchSize),
			worker.WithLogger(log),
			worker.WithMetrics(worker.NewMetrics(a.Registry)),
		)
		g.Go(func() error {
			log.InfoContext(gctx, "audit relay started", "topic", cfg.Audit.Topic)
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.WarnContext(ctx, "no kafka brokers configured; audit events stay in the outbox")
	}

	srv := httpserver.New(cfg.MetricsAddr, httpserver.OpsRouter(a.Registry, a.HealthChecks()))
	g.Go(func() error {
		log.InfoContext(gctx, "ops server listening", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
