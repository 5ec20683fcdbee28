package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/formfill-cli/internal/db"
	"github.com/sells-group/formfill-cli/internal/prompt"
)

// PostgresCache implements Cache using pgxpool. Workers on different hosts
// share it.
type PostgresCache struct {
	pool db.Pool
}

var (
	_ Cache      = (*PostgresCache)(nil)
	_ Pruner     = (*PostgresCache)(nil)
	_ BulkWriter = (*PostgresCache)(nil)
)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// postgresQueries holds the statements used on the hot path.
var postgresQueries = map[string]string{
	"get_prompt": `SELECT id, prompt, prompt_hash, model, answered_by, result, prompt_tokens, completion_tokens, request_time_ms, task_id, created_at
		FROM prompt_log WHERE prompt_hash = $1 AND model = $2`,
	"put_prompt": `INSERT INTO prompt_log (id, prompt, prompt_hash, model, answered_by, result, prompt_tokens, completion_tokens, request_time_ms, task_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (prompt_hash, model) DO UPDATE SET
			id = EXCLUDED.id, prompt = EXCLUDED.prompt, answered_by = EXCLUDED.answered_by, result = EXCLUDED.result,
			prompt_tokens = EXCLUDED.prompt_tokens, completion_tokens = EXCLUDED.completion_tokens,
			request_time_ms = EXCLUDED.request_time_ms, task_id = EXCLUDED.task_id, created_at = EXCLUDED.created_at`,
}

// NewPostgres creates a PostgresCache with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresCache, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresCache{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. The cache takes ownership and
// closes the pool on Close.
func NewPostgresFromPool(pool db.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prompt_log (
	id                UUID PRIMARY KEY,
	prompt            TEXT NOT NULL,
	prompt_hash       TEXT NOT NULL,
	model             TEXT NOT NULL,
	answered_by       TEXT NOT NULL DEFAULT '',
	result            TEXT NOT NULL,
	prompt_tokens     BIGINT NOT NULL DEFAULT 0,
	completion_tokens BIGINT NOT NULL DEFAULT 0,
	request_time_ms   BIGINT NOT NULL DEFAULT 0,
	task_id           TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (prompt_hash, model)
);

CREATE INDEX IF NOT EXISTS idx_prompt_log_created_at ON prompt_log(created_at);
`

// Migrate creates the prompt_log table.
func (s *PostgresCache) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresCache) Close() error {
	s.pool.Close()
	return nil
}

// Get implements prompt.Cache.
func (s *PostgresCache) Get(ctx context.Context, hash, model string) (*prompt.Record, error) {
	var (
		rec       prompt.Record
		requestMS int64
	)
	err := s.pool.QueryRow(ctx, postgresQueries["get_prompt"], hash, model).Scan(
		&rec.ID, &rec.Prompt, &rec.PromptHash, &rec.Model, &rec.AnsweredBy, &rec.Result,
		&rec.PromptTokens, &rec.CompletionTokens, &requestMS, &rec.TaskID, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prompt %s", hash)
	}
	rec.RequestTime = time.Duration(requestMS) * time.Millisecond
	return &rec, nil
}

// Put implements prompt.Cache. The last write for a (hash, model) pair wins.
func (s *PostgresCache) Put(ctx context.Context, rec prompt.Record) error {
	rec = withIdentity(rec)
	_, err := s.pool.Exec(ctx, postgresQueries["put_prompt"],
		rec.ID, rec.Prompt, rec.PromptHash, rec.Model, rec.AnsweredBy, rec.Result,
		rec.PromptTokens, rec.CompletionTokens, rec.RequestTime.Milliseconds(), rec.TaskID, rec.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: put prompt %s", rec.PromptHash)
	}
	return nil
}

var promptLogUpsert = db.UpsertConfig{
	Table: "prompt_log",
	Columns: []string{
		"id", "prompt", "prompt_hash", "model", "answered_by", "result",
		"prompt_tokens", "completion_tokens", "request_time_ms", "task_id", "created_at",
	},
	ConflictKeys: []string{"prompt_hash", "model"},
}

// PutMany upserts records in one round trip. Used to seed a shared cache
// from a local one.
func (s *PostgresCache) PutMany(ctx context.Context, recs []prompt.Record) (int64, error) {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		r = withIdentity(r)
		rows[i] = []any{
			r.ID, r.Prompt, r.PromptHash, r.Model, r.AnsweredBy, r.Result,
			r.PromptTokens, r.CompletionTokens, r.RequestTime.Milliseconds(), r.TaskID, r.CreatedAt,
		}
	}
	n, err := db.BulkUpsert(ctx, s.pool, promptLogUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: put many")
	}
	return n, nil
}

// Prune deletes records created more than olderThan ago.
func (s *PostgresCache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM prompt_log WHERE created_at < $1`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune prompt log")
	}
	return tag.RowsAffected(), nil
}

func withIdentity(rec prompt.Record) prompt.Record {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}
