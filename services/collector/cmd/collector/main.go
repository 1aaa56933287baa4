package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuelguard/fuelguard/pkg/health"
	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/services/collector/internal/collector"
	"github.com/fuelguard/fuelguard/services/collector/internal/config"
)

func main() {
	cfgPath := flag.String("config", "configs/dev/collector.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logger.Init(cfg.Logging, cfg.Service.Name); err != nil {
		logger.Fatal().Err(err).Msg("failed to init logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := collector.New(cfg, logger.WithComponent("collector"))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to nats")
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start collector")
	}

	mux := http.NewServeMux()
	mux.Handle("/health", health.Handler(map[string]health.Check{"nats": svc.Connected}))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/buffers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.Buffers())
	})

	srv := &http.Server{
		Addr:         cfg.Service.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Service.HTTPAddr).Msg("collector: http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
