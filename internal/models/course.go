package models

import (
	"strings"
	"time"
)

// Course carries the metadata the scheduler consumes. Course CRUD itself
// belongs to the admin collaborator.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	TeacherName     string    `db:"teacher_name" json:"teacher_name"`
	MaxEnrollment   int       `db:"max_enrollment" json:"max_enrollment"`
	DesiredDays     string    `db:"desired_days" json:"desired_days"`
	SessionsPerWeek int       `db:"sessions_per_week" json:"sessions_per_week"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DesiredDayList parses the stored comma-separated day set, dropping
// invalid entries and duplicates while preserving week order.
func (c Course) DesiredDayList() []Day {
	seen := make(map[Day]bool)
	for _, raw := range strings.Split(c.DesiredDays, ",") {
		if day, ok := ParseDay(raw); ok {
			seen[day] = true
		}
	}
	days := make([]Day, 0, len(seen))
	for _, day := range WeekDays {
		if seen[day] {
			days = append(days, day)
		}
	}
	return days
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	TeacherID string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
}
