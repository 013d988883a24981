package dto

// RequestEnrollmentRequest creates a fresh pending enrollment.
type RequestEnrollmentRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
	Notes    string `json:"notes"`
}

// ReviewEnrollmentRequest carries reviewer notes for approve/deny.
type ReviewEnrollmentRequest struct {
	Notes string `json:"notes"`
}

// RepositionWaitlistRequest moves a waitlisted enrollment.
type RepositionWaitlistRequest struct {
	NewPosition int `json:"new_position" validate:"required,min=1"`
}
