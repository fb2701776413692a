package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/capture"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists capture-run history to PostgreSQL. It is optional: the
// orchestrator runs without it when no database is configured.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS capture_runs (
    id         UUID PRIMARY KEY,
    target_url TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS capture_artifacts (
    run_id      UUID NOT NULL REFERENCES capture_runs(id) ON DELETE CASCADE,
    seq         INT NOT NULL,
    state_label TEXT NOT NULL,
    scope       TEXT NOT NULL,
    path        TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS capture_records (
    run_id         UUID NOT NULL REFERENCES capture_runs(id) ON DELETE CASCADE,
    seq            INT NOT NULL,
    state_label    TEXT NOT NULL,
    interpretation TEXT NOT NULL,
    details        TEXT NOT NULL,
    placeholder    BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (run_id, seq)
);
`

const (
	sqlInsertRun = `
        INSERT INTO capture_runs (id, target_url, created_at)
        VALUES ($1, $2, $3);
    `
	sqlInsertArtifact = `
        INSERT INTO capture_artifacts (run_id, seq, state_label, scope, path)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlInsertRecord = `
        INSERT INTO capture_records (run_id, seq, state_label, interpretation, details, placeholder)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the run-history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordRun writes the whole run in one transaction: the run row, every
// artifact, and every extraction record in visitation order.
func (s *Store) RecordRun(ctx context.Context, result *capture.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun, result.RunID, result.TargetURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}
	for i, a := range result.Artifacts {
		if _, err := tx.Exec(ctx, sqlInsertArtifact, result.RunID, i, a.StateLabel, string(a.Scope), a.Path); err != nil {
			return fmt.Errorf("failed to insert artifact %s: %w", a.Path, err)
		}
	}
	for i, r := range result.Records {
		if _, err := tx.Exec(ctx, sqlInsertRecord, result.RunID, i, r.StateLabel, r.Interpretation, r.Details, r.Placeholder); err != nil {
			return fmt.Errorf("failed to insert record for state %q: %w", r.StateLabel, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run history recorded",
		zap.String("run_id", result.RunID),
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("records", len(result.Records)),
	)
	return nil
}
