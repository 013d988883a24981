package models

import "time"

// ScheduleAssignment is one committed weekly recurring session.
type ScheduleAssignment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	RoomID    string    `db:"room_id" json:"room_id"`
	DayOfWeek Day       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignmentDetail enriches an assignment with course and room context for
// conflict reporting.
type AssignmentDetail struct {
	ScheduleAssignment
	CourseTitle string `db:"course_title" json:"course_title"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	RoomName    string `db:"room_name" json:"room_name"`
}

// ConflictDetail names the committed assignment a candidate collides with.
type ConflictDetail struct {
	AssignmentID string `json:"assignment_id"`
	CourseID     string `json:"course_id"`
	CourseTitle  string `json:"course_title"`
	TeacherName  string `json:"teacher_name"`
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	DayOfWeek    Day    `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// DetailedError reports one day the generator could not satisfy.
type DetailedError struct {
	Day     Day    `json:"day"`
	Message string `json:"message"`
}

// GenerationReport aggregates every unmet day from a generation run.
// It is returned instead of options when no full candidate could be built.
type GenerationReport struct {
	Errors        []DetailedError  `json:"errors"`
	RoomConflicts []ConflictDetail `json:"room_conflicts,omitempty"`
}

// ScheduleConflictError is returned when a commit collides with existing
// assignments.
type ScheduleConflictError struct {
	Message   string           `json:"message"`
	Conflicts []ConflictDetail `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
