package models

import (
	"time"

	"github.com/lib/pq"
)

// PostCategory classifies community posts. Notices are pinned above the rest.
type PostCategory string

const (
	PostCategoryGeneral PostCategory = "general"
	PostCategoryInfo    PostCategory = "info"
	PostCategoryNotice  PostCategory = "notice"
	PostCategoryQnA     PostCategory = "qna"
)

// Post is a community board entry. LikesCount and CommentsCount are computed
// by the listing queries, not stored.
type Post struct {
	ID            string         `db:"id" json:"id"`
	AuthorID      string         `db:"author_id" json:"author_id"`
	Title         string         `db:"title" json:"title"`
	Content       string         `db:"content" json:"content"`
	Category      PostCategory   `db:"category" json:"category"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	Images        pq.StringArray `db:"images" json:"images"`
	YoutubeURL    string         `db:"youtube_url" json:"youtube_url,omitempty"`
	IsPublished   bool           `db:"is_published" json:"is_published"`
	IsFeatured    bool           `db:"is_featured" json:"is_featured"`
	IsPrivate     bool           `db:"is_private" json:"is_private"`
	Views         int            `db:"views" json:"views"`
	LikesCount    int            `db:"likes_count" json:"likes_count"`
	CommentsCount int            `db:"comments_count" json:"comments_count"`
	AuthorName    string         `db:"author_name" json:"author_name"`
	AuthorLevel   int            `db:"author_level" json:"author_level"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// PostFilter narrows community listings.
type PostFilter struct {
	Category PostCategory
	AuthorID string
	Search   string
	Featured *bool
	// ViewerID sees their own private posts; admins see all.
	ViewerID    string
	ViewerAdmin bool
	Page        int
	PageSize    int
}

// LikeResult reports the state after a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// Comment belongs to a post and optionally replies to another comment.
// Deleted comments are kept with their content blanked.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	PostID     string    `db:"post_id" json:"post_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	ParentID   *string   `db:"parent_id" json:"parent_id,omitempty"`
	Content    string    `db:"content" json:"content"`
	IsDeleted  bool      `db:"is_deleted" json:"is_deleted"`
	AuthorName string    `db:"author_name" json:"author_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
