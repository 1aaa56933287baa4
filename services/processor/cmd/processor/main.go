package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fuelguard/fuelguard/pkg/health"
	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/services/processor/internal/alerts"
	"github.com/fuelguard/fuelguard/services/processor/internal/classify"
	"github.com/fuelguard/fuelguard/services/processor/internal/config"
	"github.com/fuelguard/fuelguard/services/processor/internal/daily"
	"github.com/fuelguard/fuelguard/services/processor/internal/lockstore"
	"github.com/fuelguard/fuelguard/services/processor/internal/outlier"
	"github.com/fuelguard/fuelguard/services/processor/internal/pipeline"
	"github.com/fuelguard/fuelguard/services/processor/internal/processor"
	"github.com/fuelguard/fuelguard/services/processor/internal/smoothing"
	"github.com/fuelguard/fuelguard/services/processor/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "configs/dev/processor.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logger.Init(cfg.Logging, cfg.Service.Name); err != nil {
		logger.Fatal().Err(err).Msg("failed to init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("processor stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Drain()

	locks, err := openLockStore(ctx, cfg, nc)
	if err != nil {
		return err
	}

	store, err := storage.New(ctx, storage.Config{
		PostgresDSN:  cfg.Storage.PostgresDSN,
		WriteResults: cfg.Storage.WriteResults,
		Tables:       cfg.Storage.Tables,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	if !store.Enabled() {
		logger.Warn().Msg("write_results disabled, results are not persisted")
	}

	scorer, err := outlier.New(cfg.Outlier.Method)
	if err != nil {
		return err
	}

	classifier := classify.New(
		classify.Thresholds{Refill: cfg.Thresholds.Refill, Theft: cfg.Thresholds.Theft},
		*cfg.Classification.MinLevel,
		*cfg.Classification.MaxLevel,
		cfg.Classification.GeneratorPowerStates,
	)
	analyzer := pipeline.NewAnalyzer(smoothing.New(cfg.Smoothing.Window), classifier, scorer, cfg.Thresholds.LitreChange, cfg.Outlier.Threshold)

	agg := daily.NewAggregator(cfg.Daily.Offset, classifier, daily.WithGrace(cfg.Daily.Grace))
	scheduler := daily.NewScheduler(agg, store, daily.SystemClock{}, logger.WithComponent("daily"))

	svc := processor.New(cfg, nc, processor.Deps{
		Analyzer: analyzer,
		Alerts:   alerts.NewManager(locks, store, logger.WithComponent("alerts")),
		Daily:    agg,
		Latest:   store,
	}, logger.WithComponent("processor"))

	// workers keep a live context so batches queued at shutdown still reach the sinks
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", health.Handler(map[string]health.Check{
		"nats":     natsCheck(nc),
		"postgres": store.Ping,
	}))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /daily/pending", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, agg.Pending())
	})
	mux.HandleFunc("POST /daily/flush", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, scheduler.Flush(r.Context()))
	})

	srv := &http.Server{
		Addr:         cfg.Service.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Service.HTTPAddr).Msg("processor: http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}

		// queued batches land in the aggregator before the last flush
		svc.Close()
		res := scheduler.Flush(ctxShutdown)
		logger.Info().Int("written", res.Written).Int("failed", res.Failed).Msg("final daily flush")
		return nil
	})

	return g.Wait()
}

func openLockStore(ctx context.Context, cfg *config.Config, nc *nats.Conn) (alerts.LockStore, error) {
	if cfg.LockStore.Kind == lockstore.KindMemory {
		logger.Warn().Msg("memory lock store in use, open alerts are lost on restart")
		return lockstore.NewMemoryStore(), nil
	}

	store, err := lockstore.NewNatsStore(ctx, nc, cfg.LockStore.Bucket, cfg.LockStore.TTL)
	if err != nil {
		return nil, fmt.Errorf("open lock store: %w", err)
	}
	return store, nil
}

func natsCheck(nc *nats.Conn) health.Check {
	return func() error {
		if !nc.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
