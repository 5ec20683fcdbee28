package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

// newMockPostgresCache creates a PostgresCache backed by pgxmock.
func newMockPostgresCache(t *testing.T) (*PostgresCache, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

var recordColumns = []string{
	"id", "prompt", "prompt_hash", "model", "answered_by", "result",
	"prompt_tokens", "completion_tokens", "request_time_ms", "task_id", "created_at",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresCache(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS prompt_log`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresCache(t)

	mock.ExpectQuery(`FROM prompt_log WHERE prompt_hash = \$1 AND model = \$2`).
		WithArgs("abc123", "model-a").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "abc123", "model-a")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_Found(t *testing.T) {
	s, mock := newMockPostgresCache(t)
	rec := testRecord("hello", "model-a")

	mock.ExpectQuery(`FROM prompt_log WHERE prompt_hash`).
		WithArgs(rec.PromptHash, rec.Model).
		WillReturnRows(pgxmock.NewRows(recordColumns).AddRow(
			rec.ID, rec.Prompt, rec.PromptHash, rec.Model, "model-b", rec.Result,
			rec.PromptTokens, rec.CompletionTokens, int64(1500), rec.TaskID, rec.CreatedAt,
		))

	got, err := s.Get(context.Background(), rec.PromptHash, rec.Model)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "model-b", got.AnsweredBy)
	assert.Equal(t, 1500*time.Millisecond, got.RequestTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_Error(t *testing.T) {
	s, mock := newMockPostgresCache(t)

	mock.ExpectQuery(`FROM prompt_log`).
		WithArgs("h", "m").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), "h", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get prompt h")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Put_Upsert(t *testing.T) {
	s, mock := newMockPostgresCache(t)
	rec := testRecord("hello", "model-a")

	mock.ExpectExec(`(?s)INSERT INTO prompt_log .*ON CONFLICT \(prompt_hash, model\) DO UPDATE`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutMany(t *testing.T) {
	s, mock := newMockPostgresCache(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_staging_prompt_log"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_staging_prompt_log"}, recordColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "prompt_log"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.PutMany(context.Background(), []prompt.Record{
		testRecord("a", "model-a"),
		testRecord("b", "model-a"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Prune(t *testing.T) {
	s, mock := newMockPostgresCache(t)

	mock.ExpectExec(`DELETE FROM prompt_log WHERE created_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.Prune(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
