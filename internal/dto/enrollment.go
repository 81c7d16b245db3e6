package dto

import "github.com/noah-isme/camp-booking-api/internal/models"

// WishlistRequest adds a program to the caller's wishlist.
type WishlistRequest struct {
	ProgramID string `json:"program_id" validate:"required,uuid"`
}

// DirectEnrollRequest enrolls a student straight into a program.
type DirectEnrollRequest struct {
	ProgramID        string                  `json:"program_id" validate:"required,uuid"`
	Student          models.StudentInfo      `json:"student"`
	EmergencyContact models.EmergencyContact `json:"emergency_contact"`
	Notes            string                  `json:"notes" validate:"max=1000"`
}

// ConvertWishlistRequest turns a wishlist item into a pending enrollment.
type ConvertWishlistRequest struct {
	Student          models.StudentInfo      `json:"student"`
	EmergencyContact models.EmergencyContact `json:"emergency_contact"`
	Notes            string                  `json:"notes" validate:"max=1000"`
}

// UpdateEnrollmentStatusRequest is the admin status control.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=confirmed completed cancelled"`
}

// UpdatePaymentRequest records settlement details.
type UpdatePaymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"required,oneof=pending partial paid refunded"`
	PaymentMethod string               `json:"payment_method" validate:"max=40"`
	Notes         string               `json:"notes" validate:"max=1000"`
}
