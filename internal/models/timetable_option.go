package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// OptionSlot is one proposed session inside a timetable option.
type OptionSlot struct {
	Day       Day    `json:"day"`
	RoomID    string `json:"room_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// TimetableOption is a candidate full-week schedule for one course.
// Options are superseded as a batch on regeneration and become committed
// assignments only through application.
type TimetableOption struct {
	ID               string         `db:"id" json:"id"`
	CourseID         string         `db:"course_id" json:"course_id"`
	OptionNumber     int            `db:"option_number" json:"option_number"`
	ScheduleData     types.JSONText `db:"schedule_data" json:"schedule_data"`
	UtilizationScore float64        `db:"utilization_score" json:"utilization_score"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// Slots decodes the option's ordered slot list.
func (o TimetableOption) Slots() ([]OptionSlot, error) {
	var slots []OptionSlot
	if len(o.ScheduleData) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(o.ScheduleData, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// SetSlots encodes the slot list into schedule_data.
func (o *TimetableOption) SetSlots(slots []OptionSlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	o.ScheduleData = types.JSONText(raw)
	return nil
}
