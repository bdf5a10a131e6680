// Command paperctl inspects and maintains the paper corpus directly against
// the configured store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"papersearch/internal/bootstrap"
	"papersearch/internal/config"
	"papersearch/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "paperctl",
	Short: "Inspect and maintain the paper corpus",
	Long: `paperctl runs keyword and similarity searches, reads pages and abstracts,
ingests PDFs and repairs publication dates against the configured store.

Store selection and tuning come from PAPERSEARCH_* environment variables,
optionally loaded from a .env file in the working directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of text")
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session is what every command needs from the environment.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  storage.Store
}

func openSession(ctx context.Context) (*session, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &session{cfg: cfg, logger: logger, store: store}, nil
}

func (r *session) Close() error {
	return r.store.Close()
}
