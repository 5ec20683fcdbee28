package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/store"
)

var (
	pruneOlderThan time.Duration
	syncFrom       string
	syncPageSize   int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the prompt cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached prompts older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		c, err := store.Open(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		if c == nil {
			return eris.New("prompt cache is disabled")
		}
		defer c.Close() //nolint:errcheck

		p, ok := c.(store.Pruner)
		if !ok {
			return eris.Errorf("cache driver %s expires entries by ttl and cannot be pruned", cfg.Cache.Driver)
		}
		n, err := p.Prune(cmd.Context(), pruneOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d cached prompts.\n", n)
		return nil
	},
}

var cacheSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy a local SQLite prompt cache into the configured cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		ctx := cmd.Context()

		src, err := store.NewSQLite(syncFrom)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		dst, err := store.Open(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		if dst == nil {
			return eris.New("prompt cache is disabled")
		}
		defer dst.Close() //nolint:errcheck

		w, ok := dst.(store.BulkWriter)
		if !ok {
			return eris.Errorf("cache driver %s does not support bulk writes", cfg.Cache.Driver)
		}
		n, err := syncCache(ctx, src, w, syncPageSize)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d cached prompts.\n", n)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
	cacheSyncCmd.Flags().StringVar(&syncFrom, "from", "formfill-cache.db", "sqlite cache file to copy from")
	cacheSyncCmd.Flags().IntVar(&syncPageSize, "page-size", 500, "records per bulk write")
	cacheCmd.AddCommand(cachePruneCmd, cacheSyncCmd)
	rootCmd.AddCommand(cacheCmd)
}

// syncCache pages through src oldest first and bulk writes each page to
// dst. Pages are keyed by created_at, so it can be rerun to pick up new
// entries.
func syncCache(ctx context.Context, src store.Lister, dst store.BulkWriter, pageSize int) (int64, error) {
	var (
		total int64
		after time.Time
	)
	for {
		page, err := src.List(ctx, after, pageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}
		n, err := dst.PutMany(ctx, page)
		if err != nil {
			return total, eris.Wrapf(err, "sync page after %s", after.Format(time.RFC3339))
		}
		total += n
		after = page[len(page)-1].CreatedAt
		zap.L().Debug("cache sync page written", zap.Int64("rows", n), zap.Time("after", after))
	}
	zap.L().Info("cache sync complete", zap.Int64("rows", total))
	return total, nil
}
