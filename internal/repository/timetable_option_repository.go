package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusflow/course-scheduler-api/internal/models"
)

// TimetableOptionRepository handles persistence of candidate schedules.
type TimetableOptionRepository struct {
	db *sqlx.DB
}

// NewTimetableOptionRepository constructs the repository.
func NewTimetableOptionRepository(db *sqlx.DB) *TimetableOptionRepository {
	return &TimetableOptionRepository{db: db}
}

const optionColumns = `id, course_id, option_number, schedule_data, utilization_score, created_at`

// ListByCourse returns the current option batch for a course.
func (r *TimetableOptionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.TimetableOption, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_options WHERE course_id = $1 ORDER BY option_number`, optionColumns)
	var options []models.TimetableOption
	if err := r.db.SelectContext(ctx, &options, query, courseID); err != nil {
		return nil, fmt.Errorf("list timetable options: %w", err)
	}
	return options, nil
}

// FindByID returns one option.
func (r *TimetableOptionRepository) FindByID(ctx context.Context, id string) (*models.TimetableOption, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_options WHERE id = $1`, optionColumns)
	var option models.TimetableOption
	if err := r.db.GetContext(ctx, &option, query, id); err != nil {
		return nil, err
	}
	return &option, nil
}

// ReplaceBatch discards the course's prior options and stores the new
// batch. Regeneration never accumulates.
func (r *TimetableOptionRepository) ReplaceBatch(ctx context.Context, courseID string, options []models.TimetableOption) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin option batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_options WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear timetable options: %w", err)
	}

	now := time.Now().UTC()
	const query = `INSERT INTO timetable_options (id, course_id, option_number, schedule_data, utilization_score, created_at)
        VALUES (:id, :course_id, :option_number, :schedule_data, :utilization_score, :created_at)`
	for i := range options {
		if options[i].ID == "" {
			options[i].ID = uuid.NewString()
		}
		options[i].CourseID = courseID
		options[i].CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, options[i]); err != nil {
			return fmt.Errorf("insert timetable option: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit option batch: %w", err)
	}
	return nil
}

// DeleteByCourse removes the course's option batch.
func (r *TimetableOptionRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetable_options WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("delete timetable options: %w", err)
	}
	return nil
}
