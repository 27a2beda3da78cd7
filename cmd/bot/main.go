package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"transitlab-bot/internal/blob"
	"transitlab-bot/internal/config"
	"transitlab-bot/internal/engine"
	"transitlab-bot/internal/metrics"
	"transitlab-bot/internal/prompt"
	"transitlab-bot/internal/publisher"
	"transitlab-bot/internal/session"
	"transitlab-bot/internal/store"
	"transitlab-bot/internal/telegram"
	"transitlab-bot/internal/track"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer sqlDB.Close()
	if err := store.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}
	if err := store.EnsureSchema(ctx, sqlDB); err != nil {
		log.Fatalf("db schema error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Optional survey-event publisher
	var pub engine.Publisher
	if cfg.NATSURL != "" {
		var pm publisher.PublisherMetrics
		if mcol != nil {
			pm = mcol
		}
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, pm)
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
	}

	// Optional raw-track archiver; archival is best-effort, so a
	// misconfigured store only disables it.
	var archiver track.Archiver
	if cfg.S3Bucket != "" {
		s3store, err := blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			log.Printf("track archival disabled: %v", err)
		} else {
			archiver = s3store
		}
	}

	prompts := prompt.ForLocale(prompt.Locale(cfg.Locale))

	transport, err := telegram.New(cfg.BotToken, cfg.VideoPath, prompts)
	if err != nil {
		log.Fatalf("telegram error: %v", err)
	}

	eng := engine.New(
		session.NewStore(),
		store.NewGateway(sqlDB, cfg.WriteTimeout, cfg.SimplifyTolerance),
		track.NewIngestor(archiver),
		transport,
		pub,
		mcol,
		prompts,
	)

	// Periodic idle-session sweep
	if cfg.SessionTTL > 0 {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					eng.SweepIdle(cfg.SessionTTL)
				}
			}
		}()
	}

	log.Printf("survey bot running (locale=%s)", cfg.Locale)
	transport.Run(ctx, eng.Handle)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Printf("shutdown complete")
}
