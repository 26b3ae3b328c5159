// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store keeps run history and archived items in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("database pool cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
        CREATE TABLE IF NOT EXISTS runs (
            id              TEXT PRIMARY KEY,
            target_url      TEXT NOT NULL,
            file_name       TEXT NOT NULL,
            export_format   TEXT NOT NULL,
            extractor_count INTEGER NOT NULL,
            state           TEXT NOT NULL,
            item_count      INTEGER NOT NULL DEFAULT 0,
            failure_reason  TEXT,
            started_at      TIMESTAMPTZ NOT NULL,
            finished_at     TIMESTAMPTZ
        );
        CREATE TABLE IF NOT EXISTS run_items (
            run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            seq    INTEGER NOT NULL,
            data   JSONB NOT NULL,
            PRIMARY KEY (run_id, seq)
        );
    `

// EnsureSchema creates the history tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordStart inserts a running entry for the run.
func (s *Store) RecordStart(ctx context.Context, req schemas.RunRequest, startedAt time.Time) error {
	query := `
        INSERT INTO runs (id, target_url, file_name, export_format, extractor_count, state, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING;
    `
	_, err := s.pool.Exec(ctx, query,
		req.RunID, req.Profile.TargetURL, req.FileName, string(req.Profile.ExportFormat),
		len(req.Profile.Extractors), string(schemas.RunRunning), startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordFinish stores the terminal outcome of a run.
func (s *Store) RecordFinish(ctx context.Context, summary schemas.RunSummary) error {
	query := `
        UPDATE runs
        SET state = $2, item_count = $3, file_name = $4, failure_reason = NULLIF($5, ''), finished_at = $6
        WHERE id = $1;
    `
	tag, err := s.pool.Exec(ctx, query,
		summary.RunID, string(summary.State), summary.ItemCount, summary.FileName,
		summary.FailureReason, summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn("Finished run had no start record", zap.String("run_id", summary.RunID))
	}
	return nil
}

// ArchiveItems copies a run's extracted records into run_items in one transaction.
func (s *Store) ArchiveItems(ctx context.Context, runID string, items []schemas.ResultItem) error {
	if len(items) == 0 {
		return nil
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

	rows := make([][]interface{}, len(items))
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item %d: %w", i, err)
		}
		rows[i] = []interface{}{runID, i, data}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"run_items"},
		[]string{"run_id", "seq", "data"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy items: %w", err)
	}
	if int(copyCount) != len(items) {
		return fmt.Errorf("mismatch in copied items count: expected %d, got %d", len(items), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]schemas.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT id, state, file_name, item_count, COALESCE(failure_reason, ''), started_at, COALESCE(finished_at, started_at)
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunSummary
	for rows.Next() {
		var r schemas.RunSummary
		var state string
		if err := rows.Scan(&r.RunID, &state, &r.FileName, &r.ItemCount, &r.FailureReason, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.State = schemas.RunState(state)
		if !r.State.Terminal() {
			r.FinishedAt = time.Time{}
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return runs, nil
}
