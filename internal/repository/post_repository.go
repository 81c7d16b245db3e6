package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/camp-booking-api/internal/models"
)

const postSelect = `SELECT p.id, p.author_id, p.title, p.content, p.category, p.tags, p.images, p.youtube_url,
p.is_published, p.is_featured, p.is_private, p.views, p.created_at, p.updated_at,
u.name AS author_name, u.community_level AS author_level,
(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes_count,
(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id AND NOT c.is_deleted) AS comments_count
FROM posts p JOIN users u ON u.id = p.author_id`

// PostRepository persists community posts and their like sets.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository constructs the repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns published posts, notices first, newest first within each group.
func (r *PostRepository) List(ctx context.Context, filter models.PostFilter) ([]models.Post, int, error) {
	where := " WHERE p.is_published = TRUE"
	var args []interface{}

	if filter.Category != "" {
		where += fmt.Sprintf(" AND p.category = $%d", len(args)+1)
		args = append(args, filter.Category)
	}
	if filter.AuthorID != "" {
		where += fmt.Sprintf(" AND p.author_id = $%d", len(args)+1)
		args = append(args, filter.AuthorID)
	}
	if filter.Featured != nil {
		where += fmt.Sprintf(" AND p.is_featured = $%d", len(args)+1)
		args = append(args, *filter.Featured)
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (LOWER(p.title) LIKE $%d OR LOWER(p.content) LIKE $%d OR $%d = ANY(p.tags))", len(args)+1, len(args)+1, len(args)+2)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", filter.Search)
	}
	if !filter.ViewerAdmin {
		if filter.ViewerID != "" {
			where += fmt.Sprintf(" AND (p.is_private = FALSE OR p.author_id = $%d)", len(args)+1)
			args = append(args, filter.ViewerID)
		} else {
			where += " AND p.is_private = FALSE"
		}
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY (p.category = 'notice') DESC, p.created_at DESC LIMIT %d OFFSET %d", postSelect, where, limit, offset)

	posts := make([]models.Post, 0)
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM posts p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

// FindByID returns a post with its computed counters.
func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.GetContext(ctx, &post, postSelect+" WHERE p.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

// Create inserts a post.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Tags == nil {
		post.Tags = pq.StringArray{}
	}
	if post.Images == nil {
		post.Images = pq.StringArray{}
	}
	const query = `INSERT INTO posts (id, author_id, title, content, category, tags, images, youtube_url, is_published, is_featured, is_private, created_at, updated_at)
VALUES (:id, :author_id, :title, :content, :category, :tags, :images, :youtube_url, :is_published, :is_featured, :is_private, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Update writes editable fields.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE posts SET title = :title, content = :content, category = :category, tags = :tags, images = :images,
youtube_url = :youtube_url, is_published = :is_published, is_private = :is_private, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a post; comments and likes cascade.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementViews bumps the view counter.
func (r *PostRepository) IncrementViews(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// SetFeatured toggles the admin featured flag.
func (r *PostRepository) SetFeatured(ctx context.Context, id string, featured bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET is_featured = $2, updated_at = $3 WHERE id = $1`, id, featured, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set featured: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendImages adds stored image paths to a post.
func (r *PostRepository) AppendImages(ctx context.Context, id string, paths []string) error {
	const query = `UPDATE posts SET images = images || $2::text[], updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, pq.StringArray(paths), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append images: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ToggleLike removes the like when present, otherwise adds it. The primary
// key on (post_id, user_id) makes concurrent toggles converge.
func (r *PostRepository) ToggleLike(ctx context.Context, exec sqlx.ExtContext, postID, userID string) (bool, int, error) {
	q := pick(r.db, exec)
	res, err := q.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("remove like: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("remove like rows: %w", err)
	}

	liked := false
	if removed == 0 {
		res, err = q.ExecContext(ctx, `INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, postID, userID, time.Now().UTC())
		if err != nil {
			return false, 0, fmt.Errorf("add like: %w", err)
		}
		added, err := res.RowsAffected()
		if err != nil {
			return false, 0, fmt.Errorf("add like rows: %w", err)
		}
		liked = added == 1
	}

	var count int
	if err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID); err != nil {
		return false, 0, fmt.Errorf("count likes: %w", err)
	}
	return liked, count, nil
}

// CountPublishedByAuthor counts an author's published posts.
func (r *PostRepository) CountPublishedByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE author_id = $1 AND is_published`, authorID); err != nil {
		return 0, fmt.Errorf("count author posts: %w", err)
	}
	return n, nil
}

// CountLikesReceived sums likes across an author's published posts.
func (r *PostRepository) CountLikesReceived(ctx context.Context, authorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM post_likes l JOIN posts p ON p.id = l.post_id WHERE p.author_id = $1 AND p.is_published`
	var n int
	if err := r.db.GetContext(ctx, &n, query, authorID); err != nil {
		return 0, fmt.Errorf("count likes received: %w", err)
	}
	return n, nil
}

// Count returns the number of posts.
func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// ResetLikes clears every like, optionally scoped to one post, and returns the number removed.
func (r *PostRepository) ResetLikes(ctx context.Context, postID string) (int64, error) {
	query := `DELETE FROM post_likes`
	var args []interface{}
	if postID != "" {
		query += ` WHERE post_id = $1`
		args = append(args, postID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset likes: %w", err)
	}
	return res.RowsAffected()
}
