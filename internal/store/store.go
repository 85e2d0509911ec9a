// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/agent"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so the store can be tested against pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the run history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            UUID PRIMARY KEY,
    task          TEXT NOT NULL,
    status        TEXT NOT NULL,
    iterations    INTEGER NOT NULL,
    elapsed_ms    BIGINT NOT NULL,
    final_message TEXT NOT NULL DEFAULT '',
    last_error    TEXT NOT NULL DEFAULT '',
    last_decision JSONB,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS run_iterations (
    run_id             UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx                INTEGER NOT NULL,
    screenshot_ref     TEXT NOT NULL,
    action             TEXT NOT NULL,
    decision           JSONB NOT NULL,
    outcome            TEXT NOT NULL,
    reasoning_attempts INTEGER NOT NULL,
    latency_ms         BIGINT NOT NULL,
    recorded_at        TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, idx)
);`

const (
	sqlInsertRun = `
        INSERT INTO runs (id, task, status, iterations, elapsed_ms, final_message, last_error, last_decision, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `
	sqlListRuns = `
        SELECT id::text, task, status, iterations, elapsed_ms, final_message, last_error, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

var iterationColumns = []string{
	"run_id", "idx", "screenshot_ref", "action", "decision", "outcome", "reasoning_attempts", "latency_ms", "recorded_at",
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID           uuid.UUID
	Task         string
	Status       agent.Status
	Iterations   int
	Elapsed      time.Duration
	FinalMessage string
	LastError    string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store keeps finished runs in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store on pool and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a connection pool for url and returns a store on it. The returned function
// closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create run history schema: %w", err)
	}
	return nil
}

// SaveRun stores a finished run and its iteration history in one transaction.
func (s *Store) SaveRun(ctx context.Context, res agent.RunResult) error {
	var lastDecision []byte
	if res.LastDecision != nil {
		raw, err := json.Marshal(res.LastDecision)
		if err != nil {
			return fmt.Errorf("failed to encode last decision: %w", err)
		}
		lastDecision = raw
	}

	rows := make([][]interface{}, len(res.History))
	for i, rec := range res.History {
		raw, err := json.Marshal(rec.Decision)
		if err != nil {
			return fmt.Errorf("failed to encode decision of iteration %d: %w", rec.Index, err)
		}
		rows[i] = []interface{}{
			res.RunID, rec.Index, rec.ScreenshotRef, string(rec.Decision.Kind()), raw,
			rec.Outcome, rec.ReasoningAttempts, rec.Latency.Milliseconds(), rec.Timestamp.UTC(),
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		res.RunID, res.Task, string(res.Status), res.IterationCount, res.ElapsedTime.Milliseconds(),
		res.FinalMessage, res.ErrorString(), lastDecision, res.StartedAt.UTC(), res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"run_iterations"}, iterationColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy iterations: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("mismatch in copied iterations count: expected %d, got %d", len(rows), n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run saved", zap.String("run_id", res.RunID.String()), zap.Int("iterations", len(rows)))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			id        string
			status    string
			elapsedMs int64
		)
		if err := rows.Scan(&id, &r.Task, &status, &r.Iterations, &elapsedMs, &r.FinalMessage, &r.LastError, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run row has invalid id %q: %w", id, err)
		}
		r.Status = agent.Status(status)
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
