package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/remote"
	"github.com/tildaslashalef/farmboard/internal/ulid"
)

// Repository defines operations for managing sync logs in the database
type Repository interface {
	// CreateSyncLog creates a new sync log
	CreateSyncLog(ctx context.Context, log *SyncLog) error

	// GetSyncLogs retrieves sync logs, newest first, optionally filtered by operation
	GetSyncLogs(ctx context.Context, op Operation, limit, offset int) ([]*SyncLog, error)

	// GetLatestSyncLog retrieves the latest sync log of an operation
	GetLatestSyncLog(ctx context.Context, op Operation) (*SyncLog, error)
}

var syncLogColumns = []string{
	"id", "operation", "user_id", "mission_id", "success",
	"error_type", "error_message", "items_synced", "started_at", "completed_at",
}

// SQLRepository implements the Repository interface using a SQL database
type SQLRepository struct {
	db        *sql.DB
	retention time.Duration
	logger    *loggy.Logger
}

// NewSQLRepository creates a new SQL repository. Rows older than retention
// are pruned as new ones are written; zero keeps every row.
func NewSQLRepository(db *sql.DB, retention time.Duration, logger *loggy.Logger) *SQLRepository {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &SQLRepository{
		db:        db,
		retention: retention,
		logger:    logger,
	}
}

// CreateSyncLog creates a new sync log and prunes expired ones
func (r *SQLRepository) CreateSyncLog(ctx context.Context, log *SyncLog) error {
	if log.ID.IsZero() {
		log.ID = ulid.GenerateWithPrefix(ulid.PrefixSync)
	}

	q := squirrel.Insert("sync_logs").
		Columns(syncLogColumns...).
		Values(log.ID, log.Operation, log.UserID, log.MissionID, log.Success,
			string(log.ErrorType), log.ErrorMessage, log.ItemsSynced, log.StartedAt, log.CompletedAt)

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building create sync log query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing create sync log query: %w", err)
	}

	if r.retention > 0 {
		if err := r.prune(ctx, log.CompletedAt.Add(-r.retention)); err != nil {
			r.logger.Warn("Failed to prune sync logs", "error", err)
		}
	}

	return nil
}

// prune deletes rows completed before cutoff
func (r *SQLRepository) prune(ctx context.Context, cutoff time.Time) error {
	query, args, err := squirrel.Delete("sync_logs").
		Where(squirrel.Lt{"completed_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building prune sync logs query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing prune sync logs query: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Debug("Pruned sync logs", "count", n)
	}
	return nil
}

// GetSyncLogs retrieves sync logs with optional filtering
func (r *SQLRepository) GetSyncLogs(ctx context.Context, op Operation, limit, offset int) ([]*SyncLog, error) {
	q := squirrel.Select(syncLogColumns...).
		From("sync_logs").
		OrderBy("completed_at DESC", "id DESC")

	if op != "" {
		q = q.Where(squirrel.Eq{"operation": op})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get sync logs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing get sync logs query: %w", err)
	}
	defer rows.Close()

	var logs []*SyncLog
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync log row: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync log rows: %w", err)
	}

	return logs, nil
}

// GetLatestSyncLog retrieves the latest sync log of an operation
func (r *SQLRepository) GetLatestSyncLog(ctx context.Context, op Operation) (*SyncLog, error) {
	q := squirrel.Select(syncLogColumns...).
		From("sync_logs").
		Where(squirrel.Eq{"operation": op}).
		OrderBy("completed_at DESC", "id DESC").
		Limit(1)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get latest sync log query: %w", err)
	}

	log, err := scanSyncLog(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("executing get latest sync log query: %w", err)
	}

	return log, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncLog(s scanner) (*SyncLog, error) {
	var (
		log       SyncLog
		errorType string
	)
	err := s.Scan(
		&log.ID,
		&log.Operation,
		&log.UserID,
		&log.MissionID,
		&log.Success,
		&errorType,
		&log.ErrorMessage,
		&log.ItemsSynced,
		&log.StartedAt,
		&log.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	log.ErrorType = remote.ErrorClass(errorType)
	return &log, nil
}
