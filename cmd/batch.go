package main

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/kpi-cli/internal/model"
)

var (
	batchSchema      string
	batchNoBackfill  bool
	batchSave        bool
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch <files...>",
	Short: "Extract KPIs from many documents concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrentDocuments = batchConcurrency
		}

		env, err := initPipeline(ctx, "batch", envOptions{
			SchemaPath: batchSchema,
			NoBackfill: batchNoBackfill,
			Persist:    batchSave,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		reports := processBatch(ctx, args, cfg.Batch.MaxConcurrentDocuments, func(ctx context.Context, path string) (*model.ExtractionReport, error) {
			return env.Pipeline.RunFile(ctx, path, env.Reader.Read)
		})
		return writeBatch(os.Stdout, reports)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSchema, "schema", "", "KPI schema file (default: built-in schema)")
	batchCmd.Flags().BoolVar(&batchNoBackfill, "no-backfill", false, "skip the LLM backfill step")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist runs to the configured store")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max documents in flight (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// runFunc extracts one document.
type runFunc func(ctx context.Context, path string) (*model.ExtractionReport, error)

// batchResult is the outcome for one file in a batch.
type batchResult struct {
	Path   string                  `json:"path"`
	Report *model.ExtractionReport `json:"report,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// processBatch runs every path with at most concurrency documents in
// flight. A failing document is recorded and does not stop the others.
// Results keep the order of paths.
func processBatch(ctx context.Context, paths []string, concurrency int, run runFunc) []batchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]batchResult, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu        sync.Mutex
		completed int
		failed    atomic.Int32
	)

	for i, path := range paths {
		g.Go(func() error {
			res := batchResult{Path: path}
			report, err := run(gCtx, path)
			if err != nil {
				failed.Add(1)
				res.Error = err.Error()
				zap.L().Error("batch: document failed", zap.String("path", path), zap.Error(err))
			} else {
				res.Report = report
			}
			results[i] = res

			mu.Lock()
			completed++
			zap.L().Info("batch: progress",
				zap.Int("completed", completed),
				zap.Int("total", len(paths)),
				zap.String("path", path),
			)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch: complete",
		zap.Int("total", len(paths)),
		zap.Int32("failed", failed.Load()),
	)
	return results
}

func writeBatch(w io.Writer, results []batchResult) error {
	if err := encodeJSON(w, results); err != nil {
		return err
	}
	if n := countFailed(results); n > 0 {
		return eris.Errorf("batch: %d of %d documents failed", n, len(results))
	}
	return nil
}

func countFailed(results []batchResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
