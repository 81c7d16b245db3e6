package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRecordVariants(t *testing.T) {
	wish := Enrollment{ID: "e1", UserID: "u1", ProgramID: "p1", Status: EnrollmentStatusWishlist}
	_, ok := wish.Record().(WishlistItem)
	assert.True(t, ok)

	active := Enrollment{
		ID:               "e2",
		Status:           EnrollmentStatusPending,
		StudentInfo:      StudentInfo{Name: "Mina", Age: 12},
		EmergencyContact: EmergencyContact{Name: "Jae", Relationship: "father", Phone: "010"},
	}
	rec, ok := active.Record().(ActiveEnrollment)
	require.True(t, ok)
	assert.Equal(t, "Mina", rec.Student.Name)
	assert.Equal(t, "Jae", rec.Emergency.Name)
	assert.Equal(t, "e2", rec.RecordID())
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from  EnrollmentStatus
		event EnrollmentEvent
		to    EnrollmentStatus
		ok    bool
	}{
		{EnrollmentStatusWishlist, EventConvert, EnrollmentStatusPending, true},
		{EnrollmentStatusPending, EventConvert, "", false},
		{EnrollmentStatusPending, EventApprove, EnrollmentStatusConfirmed, true},
		{EnrollmentStatusWishlist, EventApprove, "", false},
		{EnrollmentStatusConfirmed, EventComplete, EnrollmentStatusCompleted, true},
		{EnrollmentStatusPending, EventComplete, "", false},
		{EnrollmentStatusConfirmed, EventCancel, EnrollmentStatusCancelled, true},
		{EnrollmentStatusWishlist, EventCancel, EnrollmentStatusCancelled, true},
		{EnrollmentStatusCompleted, EventCancel, "", false},
		{EnrollmentStatusPending, EventRemoveWishlist, "", false},
		{EnrollmentStatusWishlist, "unknown", "", false},
	}
	for _, tc := range cases {
		to, ok := NextStatus(tc.from, tc.event)
		assert.Equal(t, tc.ok, ok, "%s/%s", tc.from, tc.event)
		assert.Equal(t, tc.to, to, "%s/%s", tc.from, tc.event)
	}
}
