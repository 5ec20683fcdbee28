package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/formfill-cli/internal/prompt"
)

// SQLiteCache implements Cache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

var (
	_ Cache  = (*SQLiteCache)(nil)
	_ Pruner = (*SQLiteCache)(nil)
	_ Lister = (*SQLiteCache)(nil)
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prompt_log (
	id                TEXT PRIMARY KEY,
	prompt            TEXT NOT NULL,
	prompt_hash       TEXT NOT NULL,
	model             TEXT NOT NULL,
	answered_by       TEXT NOT NULL DEFAULT '',
	result            TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	request_time_ms   INTEGER NOT NULL DEFAULT 0,
	task_id           TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (prompt_hash, model)
);

CREATE INDEX IF NOT EXISTS idx_prompt_log_created_at ON prompt_log(created_at);
`

// Migrate creates the prompt_log table.
func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

const sqliteColumns = `id, prompt, prompt_hash, model, answered_by, result,
	prompt_tokens, completion_tokens, request_time_ms, task_id, created_at`

// Get implements prompt.Cache.
func (s *SQLiteCache) Get(ctx context.Context, hash, model string) (*prompt.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM prompt_log WHERE prompt_hash = ? AND model = ?`,
		hash, model,
	)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prompt %s", hash)
	}
	return rec, nil
}

// Put implements prompt.Cache. The last write for a (hash, model) pair wins.
func (s *SQLiteCache) Put(ctx context.Context, rec prompt.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompt_log (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (prompt_hash, model) DO UPDATE SET
			id = excluded.id,
			prompt = excluded.prompt,
			answered_by = excluded.answered_by,
			result = excluded.result,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens,
			request_time_ms = excluded.request_time_ms,
			task_id = excluded.task_id,
			created_at = excluded.created_at`,
		rec.ID.String(), rec.Prompt, rec.PromptHash, rec.Model, rec.AnsweredBy, rec.Result,
		rec.PromptTokens, rec.CompletionTokens, rec.RequestTime.Milliseconds(), rec.TaskID, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: put prompt %s", rec.PromptHash)
}

// Prune deletes records created more than olderThan ago.
func (s *SQLiteCache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM prompt_log WHERE created_at < ?`,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune prompt log")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

// List returns up to limit records created after the given time, oldest first.
func (s *SQLiteCache) List(ctx context.Context, after time.Time, limit int) ([]prompt.Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM prompt_log WHERE created_at > ? ORDER BY created_at ASC LIMIT ?`,
		after.UTC(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prompt log")
	}
	defer rows.Close() //nolint:errcheck

	var out []prompt.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prompt log")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prompt log")
}

func scanRecord(scan func(dest ...any) error) (*prompt.Record, error) {
	var (
		rec       prompt.Record
		id        string
		requestMS int64
	)
	if err := scan(&id, &rec.Prompt, &rec.PromptHash, &rec.Model, &rec.AnsweredBy, &rec.Result,
		&rec.PromptTokens, &rec.CompletionTokens, &requestMS, &rec.TaskID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, eris.Wrapf(err, "parse record id %q", id)
	}
	rec.ID = parsed
	rec.RequestTime = time.Duration(requestMS) * time.Millisecond
	return &rec, nil
}
