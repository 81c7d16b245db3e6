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

const commentSelect = `SELECT c.id, c.post_id, c.author_id, c.parent_id, c.content, c.is_deleted, c.created_at, c.updated_at,
u.name AS author_name FROM comments c JOIN users u ON u.id = c.author_id`

// CommentRepository persists post comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	const query = `INSERT INTO comments (id, post_id, author_id, parent_id, content, created_at, updated_at)
VALUES (:id, :post_id, :author_id, :parent_id, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// FindByID returns a comment.
func (r *CommentRepository) FindByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, commentSelect+" WHERE c.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

// ListByPost returns a post's comments oldest first, deleted ones included as tombstones.
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := make([]models.Comment, 0)
	if err := r.db.SelectContext(ctx, &comments, commentSelect+" WHERE c.post_id = $1 ORDER BY c.created_at ASC", postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// SoftDelete blanks the comment and marks it deleted.
func (r *CommentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE comments SET is_deleted = TRUE, content = '', updated_at = $2 WHERE id = $1 AND NOT is_deleted`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountActiveByAuthor counts an author's non-deleted comments.
func (r *CommentRepository) CountActiveByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comments WHERE author_id = $1 AND NOT is_deleted`, authorID); err != nil {
		return 0, fmt.Errorf("count author comments: %w", err)
	}
	return n, nil
}
