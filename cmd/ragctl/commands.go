package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/ragvault/internal/app"
	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/rag"
	"github.com/nikhilbhutani/ragvault/pkg/textextract"
)

func newIngestCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawMeta, _ := cmd.Flags().GetString("metadata")
			id, _ := cmd.Flags().GetString("id")
			if id != "" && len(args) > 1 {
				return apperr.InvalidInput("--id can only be used with a single file")
			}
			meta := map[string]any{}
			if rawMeta != "" {
				if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil || meta == nil {
					return apperr.InvalidInput("--metadata must be a JSON object")
				}
			}

			return withEngine(cmd, open, func(ctx context.Context, a *app.App) error {
				var results []*rag.IngestResult
				for _, path := range args {
					res, err := ingestFile(ctx, a.Service, id, path, meta)
					if err != nil {
						return err
					}
					results = append(results, res)
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().String("metadata", "", "JSON object attached to every chunk")
	cmd.Flags().String("id", "", "replace the document with this id instead of creating a new one")
	return cmd
}

func ingestFile(ctx context.Context, svc *rag.Service, id, path string, meta map[string]any) (*rag.IngestResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	if id != "" {
		return svc.ReplaceDocument(ctx, id, name, data, meta)
	}
	return svc.IngestUpload(ctx, name, data, meta)
}

func newSearchCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Return the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topK, _ := cmd.Flags().GetInt("top-k")
			query := strings.Join(args, " ")
			return withEngine(cmd, open, func(ctx context.Context, a *app.App) error {
				hits, err := a.Service.Search(ctx, query, topK)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), hits)
			})
		},
	}
	cmd.Flags().IntP("top-k", "k", rag.DefaultTopK, "number of results")
	return cmd
}

func newListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, open, func(ctx context.Context, a *app.App) error {
				docs, err := a.Service.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), docs)
			})
		},
	}
}

func newShowCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show a document record and optionally its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withChunks, _ := cmd.Flags().GetBool("chunks")
			limit, _ := cmd.Flags().GetInt("limit")
			return withEngine(cmd, open, func(ctx context.Context, a *app.App) error {
				rec, err := a.Service.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !withChunks {
					return printJSON(cmd.OutOrStdout(), rec)
				}
				chunks, err := a.Service.Chunks(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"document": rec, "chunks": chunks})
			})
		},
	}
	cmd.Flags().Bool("chunks", false, "include stored chunks")
	cmd.Flags().Int("limit", 0, "maximum number of chunks (0 for all)")
	return cmd
}

func newDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document, its stored file and its vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, a *app.App) error {
				res, err := a.Service.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"status": res.Outcome, "document": res.Record}
				if errs := res.Errors(); len(errs) > 0 {
					out["errors"] = errs
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which vector backend is serving requests and the engine settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, open, func(_ context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"vector":    a.Service.Status(),
					"dimension": a.Controller.Dimension(),
					"storage":   a.Storage.Name(),
					"formats":   textextract.SupportedTypes(),
				})
			})
		},
	}
}
