package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/camp-booking-api/internal/models"
)

// ProgramRequest creates or replaces a catalog entry. The sale price is
// derived from OriginalPrice and DiscountPercent.
type ProgramRequest struct {
	Title           string                 `json:"title" validate:"required,max=200"`
	Description     string                 `json:"description" validate:"required"`
	Category        models.ProgramCategory `json:"category" validate:"required,oneof=summer winter spring special"`
	LocationName    string                 `json:"location_name" validate:"required,max=200"`
	City            string                 `json:"city" validate:"required,max=100"`
	Country         string                 `json:"country" validate:"required,max=100"`
	AgeMin          int                    `json:"age_min" validate:"min=3,max=25"`
	AgeMax          int                    `json:"age_max" validate:"min=3,max=25,gtefield=AgeMin"`
	StartDate       time.Time              `json:"start_date" validate:"required"`
	EndDate         time.Time              `json:"end_date" validate:"required,gtfield=StartDate"`
	OriginalPrice   decimal.Decimal        `json:"original_price"`
	DiscountPercent int                    `json:"discount_percent" validate:"min=0,max=100"`
	Currency        string                 `json:"currency" validate:"omitempty,len=3"`
	Capacity        int                    `json:"capacity" validate:"required,min=1"`
	Features        []string               `json:"features" validate:"max=30,dive,max=200"`
	Photos          []string               `json:"photos" validate:"max=20,dive,max=500"`
	Featured        bool                   `json:"featured"`
	IsActive        *bool                  `json:"is_active"`
	SortOrder       int                    `json:"sort_order"`
}
