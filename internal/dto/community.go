package dto

import "github.com/noah-isme/camp-booking-api/internal/models"

// PostRequest creates or edits a community post.
type PostRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Content     string              `json:"content" validate:"required,max=20000"`
	Category    models.PostCategory `json:"category" validate:"omitempty,oneof=general info notice qna"`
	Tags        []string            `json:"tags" validate:"max=10,dive,max=30"`
	YoutubeURL  string              `json:"youtube_url" validate:"omitempty,url,max=300"`
	IsPublished *bool               `json:"is_published"`
	IsPrivate   bool                `json:"is_private"`
}

// CommentRequest adds a comment or a reply.
type CommentRequest struct {
	Content  string  `json:"content" validate:"required,max=2000"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}

// FeaturePostRequest is the admin featured toggle.
type FeaturePostRequest struct {
	Featured bool `json:"featured"`
}

// ContactRequest is a message from the public contact form.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}
