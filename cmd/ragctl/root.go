package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/ragvault/internal/app"
	"github.com/nikhilbhutani/ragvault/internal/config"
)

// opener builds the engine a command runs against.
type opener func(ctx context.Context, logger *slog.Logger) (*app.App, error)

func openFromEnv(ctx context.Context, logger *slog.Logger) (*app.App, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger, app.Options{})
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate the document retrieval engine",
		Long:          "Ingest, search, inspect and delete documents in the retrieval engine using the same configuration as the API server.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(open),
		newSearchCmd(open),
		newListCmd(open),
		newShowCmd(open),
		newDeleteCmd(open),
		newStatusCmd(open),
	)
	return root
}

// withEngine opens the engine for the duration of fn.
func withEngine(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App) error) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx, logger)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
