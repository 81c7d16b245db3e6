package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProgramCategory groups programs by season.
type ProgramCategory string

const (
	CategorySummer  ProgramCategory = "summer"
	CategoryWinter  ProgramCategory = "winter"
	CategorySpring  ProgramCategory = "spring"
	CategorySpecial ProgramCategory = "special"
)

// Program is a bookable camp. EnrolledCount is owned by the enrollment
// workflow and must not be written by catalog updates.
type Program struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Category        ProgramCategory `db:"category" json:"category"`
	LocationName    string          `db:"location_name" json:"location_name"`
	City            string          `db:"city" json:"city"`
	Country         string          `db:"country" json:"country"`
	AgeMin          int             `db:"age_min" json:"age_min"`
	AgeMax          int             `db:"age_max" json:"age_max"`
	StartDate       time.Time       `db:"start_date" json:"start_date"`
	EndDate         time.Time       `db:"end_date" json:"end_date"`
	OriginalPrice   decimal.Decimal `db:"original_price" json:"original_price"`
	DiscountPercent int             `db:"discount_percent" json:"discount_percent"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Currency        string          `db:"currency" json:"currency"`
	Capacity        int             `db:"capacity" json:"capacity"`
	EnrolledCount   int             `db:"enrolled_count" json:"enrolled_count"`
	Features        pq.StringArray  `db:"features" json:"features"`
	Photos          pq.StringArray  `db:"photos" json:"photos"`
	Featured        bool            `db:"featured" json:"featured"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	SortOrder       int             `db:"sort_order" json:"sort_order"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsFull reports whether no seat is left.
func (p Program) IsFull() bool {
	return p.EnrolledCount >= p.Capacity
}

// Remaining returns the number of open seats.
func (p Program) Remaining() int {
	if r := p.Capacity - p.EnrolledCount; r > 0 {
		return r
	}
	return 0
}

// DurationDays counts calendar days including both ends.
func (p Program) DurationDays() int {
	if p.EndDate.Before(p.StartDate) {
		return 0
	}
	return int(p.EndDate.Sub(p.StartDate).Hours()/24) + 1
}

// DiscountedPrice applies a whole-percent discount, rounded to cents.
func DiscountedPrice(original decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return original.Round(2)
	}
	if discountPercent >= 100 {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(int64(100 - discountPercent)).Div(decimal.NewFromInt(100))
	return original.Mul(factor).Round(2)
}

// ProgramFilter narrows catalog listings.
type ProgramFilter struct {
	Category     ProgramCategory
	City         string
	Featured     *bool
	Age          *int
	IncludeDraft bool
	Search       string
	Page         int
	PageSize     int
}
