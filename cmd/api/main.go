package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"papersearch/internal/api"
	"papersearch/internal/bootstrap"
	"papersearch/internal/config"
	"papersearch/internal/providers"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	engine, err := bootstrap.NewEngine(store, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}
	pm.SetLogger(logger)

	var tc tclient.Client
	if c, err := bootstrap.DialTemporal(cfg, logger); err != nil {
		logger.Warn("temporal unavailable, job endpoints disabled", "address", cfg.TemporalAddress, "err", err)
	} else {
		tc = c
		defer c.Close()
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, store, engine, pm, tc, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("papersearch api listening", "addr", cfg.APIAddr, "store", cfg.StoreDriver, "embed_providers", cfg.EmbedProviders)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
