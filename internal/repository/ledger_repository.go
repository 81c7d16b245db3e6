package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/camp-booking-api/internal/models"
)

// LedgerRepository holds the atomic primitives behind experience and levels.
// Every method takes the caller's transaction.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AddExperience atomically increments experience and stamps activity,
// returning the new total and the level stored before this grant.
func (r *LedgerRepository) AddExperience(ctx context.Context, exec sqlx.ExtContext, userID string, points int, at time.Time) (int, int, error) {
	const query = `UPDATE users SET experience = experience + $2, last_active_at = $3, updated_at = $3 WHERE id = $1 RETURNING experience, community_level`
	var exp, level int
	if err := pick(r.db, exec).QueryRowxContext(ctx, query, userID, points, at).Scan(&exp, &level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("add experience: %w", err)
	}
	return exp, level, nil
}

// PromoteLevel raises the stored level only if it is below level. The boolean
// reports whether this call performed the promotion.
func (r *LedgerRepository) PromoteLevel(ctx context.Context, exec sqlx.ExtContext, userID string, level int, title string, at time.Time) (bool, error) {
	const query = `UPDATE users SET community_level = $2, community_title = $3, updated_at = $4 WHERE id = $1 AND community_level < $2`
	res, err := pick(r.db, exec).ExecContext(ctx, query, userID, level, title, at)
	if err != nil {
		return false, fmt.Errorf("promote level: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promote level rows: %w", err)
	}
	return n == 1, nil
}

// LockLevel reads the current level under a row lock.
func (r *LedgerRepository) LockLevel(ctx context.Context, exec sqlx.ExtContext, userID string) (int, error) {
	const query = `SELECT community_level FROM users WHERE id = $1 FOR UPDATE`
	var level int
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &level, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("lock level: %w", err)
	}
	return level, nil
}

// SetExperience overwrites experience with its derived level and title.
func (r *LedgerRepository) SetExperience(ctx context.Context, exec sqlx.ExtContext, userID string, exp, level int, title string, at time.Time) error {
	const query = `UPDATE users SET experience = $2, community_level = $3, community_title = $4, updated_at = $5 WHERE id = $1`
	res, err := pick(r.db, exec).ExecContext(ctx, query, userID, exp, level, title, at)
	if err != nil {
		return fmt.Errorf("set experience: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertBadge appends a badge.
func (r *LedgerRepository) InsertBadge(ctx context.Context, exec sqlx.ExtContext, badge *models.Badge) error {
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	if badge.EarnedAt.IsZero() {
		badge.EarnedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_badges (id, user_id, name, description, earned_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, badge.ID, badge.UserID, badge.Name, badge.Description, badge.EarnedAt); err != nil {
		return fmt.Errorf("insert badge: %w", err)
	}
	return nil
}

// ListBadges returns the most recent badges first, at most limit.
func (r *LedgerRepository) ListBadges(ctx context.Context, userID string, limit int) ([]models.Badge, error) {
	const query = `SELECT id, user_id, name, description, earned_at FROM user_badges WHERE user_id = $1 ORDER BY earned_at DESC LIMIT $2`
	badges := make([]models.Badge, 0)
	if err := r.db.SelectContext(ctx, &badges, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return badges, nil
}

// Experience reads the stored experience total.
func (r *LedgerRepository) Experience(ctx context.Context, userID string) (int, error) {
	const query = `SELECT experience FROM users WHERE id = $1`
	var exp int
	if err := r.db.GetContext(ctx, &exp, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("read experience: %w", err)
	}
	return exp, nil
}

// StoreActivityStats refreshes the denormalised counters.
func (r *LedgerRepository) StoreActivityStats(ctx context.Context, userID string, stats models.ActivityStats) error {
	const query = `UPDATE users SET posts_count = $2, comments_count = $3, likes_received = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, stats.PostsCount, stats.CommentsCount, stats.LikesReceived); err != nil {
		return fmt.Errorf("store activity stats: %w", err)
	}
	return nil
}
