package dto

import "github.com/noah-isme/camp-booking-api/internal/models"

// AdminUpdateUserRequest edits another account.
type AdminUpdateUserRequest struct {
	Name  *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Phone *string          `json:"phone" validate:"omitempty,max=30"`
	Role  *models.UserRole `json:"role" validate:"omitempty,oneof=parent student admin"`
}

// SetExperienceRequest overrides an account's experience.
type SetExperienceRequest struct {
	Experience int `json:"experience" validate:"min=0"`
}

// ExportRequest asks for a dataset export.
type ExportRequest struct {
	Resource models.ExportResource `json:"resource" validate:"required,oneof=users programs enrollments"`
	Format   string                `json:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}
