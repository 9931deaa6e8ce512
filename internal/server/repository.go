package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/farmboard/internal/database"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/progress"
)

// Repository stores one progress document per user
type Repository interface {
	// GetProgress returns nil, nil when the user has no record
	GetProgress(ctx context.Context, userID string) (*progress.UserProgress, error)
	// UpdateMission replaces missions[missionID], creating the user when needed
	UpdateMission(ctx context.Context, userID, missionID string, mp progress.MissionProgress) error
	// DeleteMission removes missions[missionID]; unknown users are ignored
	DeleteMission(ctx context.Context, userID, missionID string) error
	// Ping checks the database connection
	Ping(ctx context.Context) error
}

const usersProgressTable = "users_progress"

// SQLRepository implements Repository on the users_progress table
type SQLRepository struct {
	db         *sql.DB
	logger     *loggy.Logger
	maxRetries uint64
	now        func() time.Time
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:         db,
		logger:     logger,
		maxRetries: 5,
		now:        time.Now,
	}
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetProgress retrieves the progress document of userID
func (r *SQLRepository) GetProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	var p *progress.UserProgress
	err := r.retry(ctx, func() error {
		var err error
		p, err = r.getProgress(ctx, r.db, userID)
		return err
	})
	return p, err
}

// UpdateMission performs a read-modify-write of the user's missions
func (r *SQLRepository) UpdateMission(ctx context.Context, userID, missionID string, mp progress.MissionProgress) error {
	return r.retry(ctx, func() error {
		return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
			p, err := r.getProgress(ctx, tx, userID)
			if err != nil {
				return err
			}
			if p == nil {
				p = progress.Empty(userID, r.now())
			}
			mp.MissionID = missionID
			p.Missions[missionID] = mp
			return r.saveProgress(ctx, tx, p)
		})
	})
}

// DeleteMission removes missionID from the user's missions
func (r *SQLRepository) DeleteMission(ctx context.Context, userID, missionID string) error {
	return r.retry(ctx, func() error {
		return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
			p, err := r.getProgress(ctx, tx, userID)
			if err != nil || p == nil {
				return err
			}
			delete(p.Missions, missionID)
			return r.saveProgress(ctx, tx, p)
		})
	})
}

// Ping checks the database connection
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// retry reruns op with exponential backoff while SQLite reports the database
// as busy. Any other error stops immediately.
func (r *SQLRepository) retry(ctx context.Context, op func() error) error {
	operation := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if database.IsBusy(err) {
			r.logger.Warn("Database busy, retrying", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func (r *SQLRepository) getProgress(ctx context.Context, q rowQueryer, userID string) (*progress.UserProgress, error) {
	query, args, err := squirrel.Select("user_id", "missions", "extensions", "last_updated").
		From(usersProgressTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get progress query: %w", err)
	}

	var (
		p              progress.UserProgress
		missions, exts string
	)
	err = q.QueryRowContext(ctx, query, args...).Scan(&p.UserID, &missions, &exts, &p.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("executing get progress query: %w", err)
	}

	if err := json.Unmarshal([]byte(missions), &p.Missions); err != nil {
		return nil, fmt.Errorf("decoding missions of %s: %w", userID, err)
	}
	if exts != "" && exts != "{}" {
		if err := json.Unmarshal([]byte(exts), &p.Extensions); err != nil {
			return nil, fmt.Errorf("decoding extensions of %s: %w", userID, err)
		}
	}
	p.LastUpdated = p.LastUpdated.UTC()
	p.Normalize()
	return &p, nil
}

func (r *SQLRepository) saveProgress(ctx context.Context, tx *sql.Tx, p *progress.UserProgress) error {
	missions, err := json.Marshal(p.Missions)
	if err != nil {
		return fmt.Errorf("encoding missions: %w", err)
	}
	exts := []byte("{}")
	if len(p.Extensions) > 0 {
		if exts, err = json.Marshal(p.Extensions); err != nil {
			return fmt.Errorf("encoding extensions: %w", err)
		}
	}

	query, args, err := squirrel.Insert(usersProgressTable).
		Columns("user_id", "missions", "extensions", "last_updated").
		Values(p.UserID, string(missions), string(exts), r.now().UTC()).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET missions = excluded.missions, extensions = excluded.extensions, last_updated = excluded.last_updated").
		ToSql()
	if err != nil {
		return fmt.Errorf("building save progress query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing save progress query: %w", err)
	}
	return nil
}
