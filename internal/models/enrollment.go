package models

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment record.
type EnrollmentStatus string

const (
	EnrollmentStatusWishlist  EnrollmentStatus = "wishlist"
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusConfirmed EnrollmentStatus = "confirmed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
)

// PaymentStatus tracks settlement of an enrollment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// StudentInfo describes the camper. Wishlist records keep it empty.
type StudentInfo struct {
	Name         string `db:"student_name" json:"name" validate:"required,max=120"`
	Age          int    `db:"student_age" json:"age" validate:"required,min=3,max=25"`
	Gender       string `db:"student_gender" json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Grade        string `db:"student_grade" json:"grade,omitempty" validate:"max=40"`
	School       string `db:"student_school" json:"school,omitempty" validate:"max=120"`
	EnglishLevel string `db:"student_english_level" json:"english_level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Allergies    string `db:"student_allergies" json:"allergies,omitempty" validate:"max=500"`
	MedicalNotes string `db:"student_medical_notes" json:"medical_notes,omitempty" validate:"max=1000"`
}

// EmergencyContact is required once a record leaves the wishlist.
type EmergencyContact struct {
	Name         string `db:"emergency_name" json:"name" validate:"required,max=120"`
	Relationship string `db:"emergency_relationship" json:"relationship" validate:"required,max=60"`
	Phone        string `db:"emergency_phone" json:"phone" validate:"required,max=40"`
}

// Enrollment is the persisted row for a user's interest in a program.
// CapacityHeld records whether this row currently occupies a seat in
// programs.enrolled_count.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	ProgramID        string           `db:"program_id" json:"program_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	CapacityHeld     bool             `db:"capacity_held" json:"capacity_held"`
	StudentInfo      `json:"student"`
	EmergencyContact `json:"emergency_contact"`
	PaymentStatus    PaymentStatus    `db:"payment_status" json:"payment_status"`
	PaymentMethod    string           `db:"payment_method" json:"payment_method,omitempty"`
	Notes            string           `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail joins program and owner fields for listings.
type EnrollmentDetail struct {
	Enrollment
	ProgramTitle string    `db:"program_title" json:"program_title"`
	ProgramStart time.Time `db:"program_start" json:"program_start"`
	UserName     string    `db:"user_name" json:"user_name"`
	UserEmail    string    `db:"user_email" json:"user_email"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	ProgramID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentRecord is the closed set of shapes an enrollment row can take.
type EnrollmentRecord interface {
	enrollmentRecord()
	RecordID() string
}

// WishlistItem is interest without student details or a seat.
type WishlistItem struct {
	ID        string
	UserID    string
	ProgramID string
	CreatedAt time.Time
}

// ActiveEnrollment is any record past the wishlist stage.
type ActiveEnrollment struct {
	ID           string
	UserID       string
	ProgramID    string
	Status       EnrollmentStatus
	Student      StudentInfo
	Emergency    EmergencyContact
	CapacityHeld bool
}

func (WishlistItem) enrollmentRecord()     {}
func (ActiveEnrollment) enrollmentRecord() {}

func (w WishlistItem) RecordID() string     { return w.ID }
func (a ActiveEnrollment) RecordID() string { return a.ID }

// Record projects the row onto its variant.
func (e Enrollment) Record() EnrollmentRecord {
	if e.Status == EnrollmentStatusWishlist {
		return WishlistItem{ID: e.ID, UserID: e.UserID, ProgramID: e.ProgramID, CreatedAt: e.CreatedAt}
	}
	return ActiveEnrollment{
		ID:           e.ID,
		UserID:       e.UserID,
		ProgramID:    e.ProgramID,
		Status:       e.Status,
		Student:      e.StudentInfo,
		Emergency:    e.EmergencyContact,
		CapacityHeld: e.CapacityHeld,
	}
}

// EnrollmentEvent names a transition trigger.
type EnrollmentEvent string

const (
	EventRemoveWishlist EnrollmentEvent = "remove_wishlist"
	EventConvert        EnrollmentEvent = "convert"
	EventApprove        EnrollmentEvent = "approve"
	EventComplete       EnrollmentEvent = "complete"
	EventCancel         EnrollmentEvent = "cancel"

	// Creation events have no prior state and are absent from the table.
	EventAddWishlist  EnrollmentEvent = "add_wishlist"
	EventDirectEnroll EnrollmentEvent = "direct_enroll"
)

type transition struct {
	from []EnrollmentStatus
	to   EnrollmentStatus
}

// Cancel and wishlist removal end in deletion; their target is informational.
var enrollmentTransitions = map[EnrollmentEvent]transition{
	EventRemoveWishlist: {from: []EnrollmentStatus{EnrollmentStatusWishlist}, to: EnrollmentStatusCancelled},
	EventConvert:        {from: []EnrollmentStatus{EnrollmentStatusWishlist}, to: EnrollmentStatusPending},
	EventApprove:        {from: []EnrollmentStatus{EnrollmentStatusPending}, to: EnrollmentStatusConfirmed},
	EventComplete:       {from: []EnrollmentStatus{EnrollmentStatusConfirmed}, to: EnrollmentStatusCompleted},
	EventCancel: {from: []EnrollmentStatus{
		EnrollmentStatusWishlist,
		EnrollmentStatusPending,
		EnrollmentStatusConfirmed,
		EnrollmentStatusCancelled,
	}, to: EnrollmentStatusCancelled},
}

// NextStatus looks up the transition table.
func NextStatus(from EnrollmentStatus, event EnrollmentEvent) (EnrollmentStatus, bool) {
	t, ok := enrollmentTransitions[event]
	if !ok {
		return "", false
	}
	for _, s := range t.from {
		if s == from {
			return t.to, true
		}
	}
	return "", false
}
