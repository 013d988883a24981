package dto

import "github.com/campusflow/course-scheduler-api/internal/models"

// ManualScheduleRequest commits one explicit room/day/slot assignment.
type ManualScheduleRequest struct {
	RoomID    string `json:"room_id" validate:"required"`
	Day       string `json:"day" validate:"required"`
	SlotIndex int    `json:"slot_index" validate:"required,min=1"`
}

// ApplyOptionRequest selects a generated option for commit.
type ApplyOptionRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

// AvailabilityQuery asks which rooms are free in a window.
type AvailabilityQuery struct {
	Day       string `form:"day" validate:"required"`
	StartTime string `form:"start" validate:"required"`
	EndTime   string `form:"end" validate:"required"`
}

// OptionGenerationResult carries either a full option batch or the
// aggregated report explaining why none could be built.
type OptionGenerationResult struct {
	Options []models.TimetableOption `json:"options,omitempty"`
	Report  *models.GenerationReport `json:"report,omitempty"`
}

// ApplyOptionResult reports a committed assignment set or the conflicts
// that aborted the application.
type ApplyOptionResult struct {
	Assignments []models.ScheduleAssignment `json:"assignments,omitempty"`
	Conflicts   []models.ConflictDetail     `json:"conflicts,omitempty"`
}
