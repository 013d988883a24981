package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses. DENIED is terminal; a fresh request is a
// new enrollment row, never a resurrected one.
const (
	EnrollmentStatusPending    EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved   EnrollmentStatus = "APPROVED"
	EnrollmentStatusDenied     EnrollmentStatus = "DENIED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
)

// Enrollment captures a user's request to join a course.
// WaitlistPosition is non-nil iff Status is WAITLISTED; positions for one
// course form a contiguous sequence starting at 1.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	WaitlistPosition *int             `db:"waitlist_position" json:"waitlist_position,omitempty"`
	Notes            string           `db:"notes" json:"notes"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
