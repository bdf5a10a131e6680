package main

import (
	"context"
	"log"

	"papersearch/internal/activities"
	"papersearch/internal/bootstrap"
	"papersearch/internal/config"
	"papersearch/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := cfg.NewLogger()

	c, err := bootstrap.DialTemporal(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	store, err := bootstrap.OpenStore(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	a, err := activities.New(cfg, store, logger)
	if err != nil {
		log.Fatal(err)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	logger.Info("papersearch worker listening",
		"address", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "store", cfg.StoreDriver, "embed_providers", cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
