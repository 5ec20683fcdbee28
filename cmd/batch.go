package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/formlib"
	"github.com/sells-group/formfill-cli/internal/prompt"
)

var (
	batchForm   string
	batchDir    string
	batchGlob   string
	batchLimit  int
	batchMulti  bool
	batchTime   bool
	batchFormat string
	batchOut    string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fill a form from every transcript in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		def, err := formlib.Get(batchForm)
		if err != nil {
			return err
		}
		paths, err := filepath.Glob(filepath.Join(batchDir, batchGlob))
		if err != nil {
			return eris.Wrap(err, "list transcripts")
		}
		sort.Strings(paths)

		env, err := initFiller(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := fillRequest{Multi: batchMulti, CurrentTime: batchTime}
		records, err := processBatch(ctx, paths, batchLimit, cfg.Batch.MaxConcurrency, func(ctx context.Context, path string) ([]*form.Data, error) {
			text, err := readTranscript(path)
			if err != nil {
				return nil, err
			}
			return fillTranscript(ctx, env.Filler, def, text, req)
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			zap.L().Info("no records extracted")
			return nil
		}
		if err := writeRecords(batchFormat, batchOut, records); err != nil {
			return err
		}
		env.Report(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchForm, "form", formlib.Contacts, "form to fill (see `forms list`)")
	batchCmd.Flags().StringVar(&batchDir, "dir", ".", "directory holding transcripts")
	batchCmd.Flags().StringVar(&batchGlob, "glob", "*.txt", "transcript file pattern inside --dir")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of transcripts to process")
	batchCmd.Flags().BoolVar(&batchMulti, "multi", false, "extract a list of entries per transcript")
	batchCmd.Flags().BoolVar(&batchTime, "current-time", false, "tell the model the current time so relative dates resolve")
	batchCmd.Flags().StringVar(&batchFormat, "output", formatXLSX, "output format: json, yaml or xlsx")
	batchCmd.Flags().StringVar(&batchOut, "out", "results.xlsx", "output file")
	rootCmd.AddCommand(batchCmd)
}

// fillFunc extracts the records of one transcript file.
type fillFunc func(ctx context.Context, path string) ([]*form.Data, error)

// processBatch applies limit, then fills transcripts concurrently. A failed
// or unparseable transcript is logged and skipped; records keep the input
// order.
func processBatch(ctx context.Context, paths []string, limit, concurrency int, fill fillFunc) ([]export.Record, error) {
	if len(paths) == 0 {
		zap.L().Info("no transcripts found")
		return nil, nil
	}

	// Apply limit
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("transcripts", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	results := make([][]*form.Data, len(paths))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("transcript", path))

			rows, err := fill(prompt.WithTaskID(gctx, filepath.Base(path)), path)
			if err != nil {
				failed.Add(1)
				log.Error("extraction failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			results[i] = rows
			log.Info("extraction complete", zap.Int("records", len(rows)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	var records []export.Record
	for i, rows := range results {
		for _, d := range rows {
			records = append(records, export.Record{Source: filepath.Base(paths[i]), Data: d})
		}
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int("records", len(records)),
	)
	return records, nil
}
