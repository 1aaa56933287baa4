package main

import (
	"context"
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
	"github.com/fuelguard/fuelguard/services/api_gateway/internal/config"
	httpapi "github.com/fuelguard/fuelguard/services/api_gateway/internal/http"
	stor "github.com/fuelguard/fuelguard/services/api_gateway/internal/storage"
)

func main() {
	cfgPath := flag.String("config", "configs/dev/api_gateway.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logger.Init(cfg.Logging, cfg.Service.Name); err != nil {
		logger.Fatal().Err(err).Msg("failed to init logger")
	}

	storage, err := stor.New(cfg.Storage.PostgresDSN, cfg.Storage.Tables)
	if err != nil {
		logger.Fatal().Err(err).Msg("create storage")
	}
	defer storage.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /health", health.Handler(map[string]health.Check{"postgres": storage.Ping}))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := httpapi.New(storage, cfg.Daily.Offset, cfg.Timeout)
	api.Register(mux)

	srv := &http.Server{
		Addr:         cfg.Service.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Timeout + 5*time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Service.HTTPAddr).Msg("api gateway: http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
