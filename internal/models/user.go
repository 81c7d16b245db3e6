package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleParent  UserRole = "parent"
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleParent, RoleStudent, RoleAdmin:
		return true
	}
	return false
}

// User is a registered account together with its community ledger state.
// Experience, level and title are only written by the ledger; the activity
// counters are a denormalised cache refreshed from content aggregates.
type User struct {
	ID           string   `db:"id" json:"id"`
	Email        string   `db:"email" json:"email"`
	PasswordHash string   `db:"password_hash" json:"-"`
	Name         string   `db:"name" json:"name"`
	Phone        string   `db:"phone" json:"phone,omitempty"`
	Role         UserRole `db:"role" json:"role"`

	Experience     int    `db:"experience" json:"experience"`
	CommunityLevel int    `db:"community_level" json:"community_level"`
	CommunityTitle string `db:"community_title" json:"community_title"`

	PostsCount    int        `db:"posts_count" json:"posts_count"`
	CommentsCount int        `db:"comments_count" json:"comments_count"`
	LikesReceived int        `db:"likes_received" json:"likes_received"`
	LastActiveAt  *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`

	ResetTokenHash    *string    `db:"reset_token_hash" json:"-"`
	ResetTokenExpires *time.Time `db:"reset_token_expires" json:"-"`

	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Badge is an append-only record of a level-up.
type Badge struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	EarnedAt    time.Time `db:"earned_at" json:"earned_at"`
}

// ActivityStats are the aggregated content counts for an author.
type ActivityStats struct {
	PostsCount    int `db:"posts_count" json:"posts_count"`
	CommentsCount int `db:"comments_count" json:"comments_count"`
	LikesReceived int `db:"likes_received" json:"likes_received"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID   string
	Role UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor is ownerID or an admin.
func (a Actor) Owns(ownerID string) bool {
	return (a.ID != "" && a.ID == ownerID) || a.IsAdmin()
}
