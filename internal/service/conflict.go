package service

import "github.com/campusflow/course-scheduler-api/internal/models"

// SessionCandidate is a proposed room/day/time tuple checked for conflicts
// before any commit.
type SessionCandidate struct {
	RoomID    string
	Day       models.Day
	StartTime string
	EndTime   string
}

// overlaps applies half-open interval semantics: equal boundaries
// (back-to-back sessions) do not overlap. Times are fixed-width "HH:MM"
// strings, so lexical comparison is chronological.
func overlaps(startA, endA, startB, endB string) bool {
	return startA < endB && startB < endA
}

// HasConflict reports whether the candidate collides with any existing
// assignment: same room, same day, overlapping interval.
func HasConflict(candidate SessionCandidate, existing []models.ScheduleAssignment) bool {
	for _, assignment := range existing {
		if assignment.RoomID != candidate.RoomID || assignment.DayOfWeek != candidate.Day {
			continue
		}
		if overlaps(candidate.StartTime, candidate.EndTime, assignment.StartTime, assignment.EndTime) {
			return true
		}
	}
	return false
}

// FindConflicts returns the detailed assignments the candidate collides
// with, enough for the caller to render a precise message.
func FindConflicts(candidate SessionCandidate, existing []models.AssignmentDetail) []models.ConflictDetail {
	var conflicts []models.ConflictDetail
	for _, detail := range existing {
		if detail.RoomID != candidate.RoomID || detail.DayOfWeek != candidate.Day {
			continue
		}
		if !overlaps(candidate.StartTime, candidate.EndTime, detail.StartTime, detail.EndTime) {
			continue
		}
		conflicts = append(conflicts, models.ConflictDetail{
			AssignmentID: detail.ID,
			CourseID:     detail.CourseID,
			CourseTitle:  detail.CourseTitle,
			TeacherName:  detail.TeacherName,
			RoomID:       detail.RoomID,
			RoomName:     detail.RoomName,
			DayOfWeek:    detail.DayOfWeek,
			StartTime:    detail.StartTime,
			EndTime:      detail.EndTime,
		})
	}
	return conflicts
}
