package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/formfill-cli/internal/prompt"
	"github.com/sells-group/formfill-cli/internal/store"
)

type collectingWriter struct {
	pages [][]prompt.Record
	err   error
}

func (c *collectingWriter) PutMany(_ context.Context, recs []prompt.Record) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.pages = append(c.pages, recs)
	return int64(len(recs)), nil
}

func seedSQLite(t *testing.T, n int) *store.SQLiteCache {
	t.Helper()
	ctx := context.Background()
	src, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	require.NoError(t, src.Migrate(ctx))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := "prompt " + string(rune('a'+i))
		require.NoError(t, src.Put(ctx, prompt.Record{
			ID:         uuid.New(),
			Prompt:     p,
			PromptHash: prompt.Hash(p),
			Model:      "claude-sonnet-4-5",
			AnsweredBy: "claude-sonnet-4-5",
			Result:     "{}",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return src
}

func TestSyncCache_PagesOldestFirst(t *testing.T) {
	src := seedSQLite(t, 5)
	dst := &collectingWriter{}

	n, err := syncCache(context.Background(), src, dst, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.Len(t, dst.pages, 3)
	assert.Len(t, dst.pages[0], 2)
	assert.Len(t, dst.pages[2], 1)
	assert.Equal(t, "prompt a", dst.pages[0][0].Prompt)
	assert.Equal(t, "prompt e", dst.pages[2][0].Prompt)
}

func TestSyncCache_Empty(t *testing.T) {
	src := seedSQLite(t, 0)
	dst := &collectingWriter{}

	n, err := syncCache(context.Background(), src, dst, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, dst.pages)
}

func TestSyncCache_WriteError(t *testing.T) {
	src := seedSQLite(t, 2)
	dst := &collectingWriter{err: errors.New("connection refused")}

	_, err := syncCache(context.Background(), src, dst, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
