package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusflow/course-scheduler-api/internal/models"
)

// ScheduleRepository handles persistence of committed schedule assignments.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const assignmentColumns = `id, course_id, room_id, day_of_week, start_time, end_time, created_at`

const detailColumns = `a.id, a.course_id, a.room_id, a.day_of_week, a.start_time, a.end_time, a.created_at,
        c.title AS course_title, c.teacher_name AS teacher_name, r.name AS room_name`

// ListByCourse returns the committed assignments of one course.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_assignments WHERE course_id = $1
        ORDER BY day_of_week, start_time`, assignmentColumns)
	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}

// ListByCourseForUpdate locks and returns the course's assignments inside
// the given transaction.
func (r *ScheduleRepository) ListByCourseForUpdate(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.ScheduleAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_assignments WHERE course_id = $1 FOR UPDATE`, assignmentColumns)
	var assignments []models.ScheduleAssignment
	if err := tx.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("lock course assignments: %w", err)
	}
	return assignments, nil
}

// ListDetailed returns every committed assignment joined with course and
// room context, optionally excluding one course.
func (r *ScheduleRepository) ListDetailed(ctx context.Context, excludeCourseID string) ([]models.AssignmentDetail, error) {
	query, args := detailedQuery(excludeCourseID)
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list detailed assignments: %w", err)
	}
	return details, nil
}

// ListDetailedTx is ListDetailed executed inside the given transaction, so
// the read reflects rows committed by writers the transaction's room locks
// waited out.
func (r *ScheduleRepository) ListDetailedTx(ctx context.Context, tx *sqlx.Tx, excludeCourseID string) ([]models.AssignmentDetail, error) {
	query, args := detailedQuery(excludeCourseID)
	var details []models.AssignmentDetail
	if err := tx.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list detailed assignments: %w", err)
	}
	return details, nil
}

func detailedQuery(excludeCourseID string) (string, []interface{}) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_assignments a
        JOIN courses c ON c.id = a.course_id
        JOIN rooms r ON r.id = a.room_id`, detailColumns)
	var args []interface{}
	if excludeCourseID != "" {
		query += " WHERE a.course_id <> $1"
		args = append(args, excludeCourseID)
	}
	query += " ORDER BY a.day_of_week, a.start_time"
	return query, args
}

// LockRooms takes row locks on the given rooms inside the transaction.
// Concurrent schedule commits contending for a room serialise here, so the
// conflict re-check that follows never acts on a stale snapshot. IDs are
// locked in sorted order to keep multi-room commits deadlock-free.
func (r *ScheduleRepository) LockRooms(ctx context.Context, tx *sqlx.Tx, roomIDs []string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	ids := make([]string, len(roomIDs))
	copy(ids, roomIDs)
	sort.Strings(ids)
	const query = `SELECT id FROM rooms WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	var locked []string
	if err := tx.SelectContext(ctx, &locked, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("lock rooms: %w", err)
	}
	return nil
}

// Create persists one new assignment inside the given transaction.
func (r *ScheduleRepository) Create(ctx context.Context, tx *sqlx.Tx, assignment *models.ScheduleAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedule_assignments (id, course_id, room_id, day_of_week, start_time, end_time, created_at)
        VALUES (:id, :course_id, :room_id, :day_of_week, :start_time, :end_time, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ReplaceForCourse swaps the course's full assignment set inside the given
// transaction: prior rows are deleted before the new set is inserted.
func (r *ScheduleRepository) ReplaceForCourse(ctx context.Context, tx *sqlx.Tx, courseID string, assignments []models.ScheduleAssignment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear course assignments: %w", err)
	}
	now := time.Now().UTC()
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		assignments[i].CourseID = courseID
		assignments[i].CreatedAt = now
	}
	const query = `INSERT INTO schedule_assignments (id, course_id, room_id, day_of_week, start_time, end_time, created_at)
        VALUES (:id, :course_id, :room_id, :day_of_week, :start_time, :end_time, :created_at)`
	for _, assignment := range assignments {
		if _, err := tx.NamedExecContext(ctx, query, assignment); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	return nil
}

// DeleteByCourse removes every assignment of a course.
func (r *ScheduleRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("delete course assignments: %w", err)
	}
	return nil
}

// CountByRoom reports how many assignments reference a room.
func (r *ScheduleRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schedule_assignments WHERE room_id = $1`, roomID); err != nil {
		return 0, fmt.Errorf("count room assignments: %w", err)
	}
	return count, nil
}

// ListOverlapping returns assignments on a day whose half-open interval
// overlaps the provided window.
func (r *ScheduleRepository) ListOverlapping(ctx context.Context, day models.Day, startTime, endTime string) ([]models.ScheduleAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_assignments
        WHERE day_of_week = $1 AND start_time < $3 AND end_time > $2`, assignmentColumns)
	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, day, startTime, endTime); err != nil {
		return nil, fmt.Errorf("list overlapping assignments: %w", err)
	}
	return assignments, nil
}

// MinRoomCapacity returns the smallest capacity among rooms the course is
// scheduled into. ok is false when the course has no assignments.
func (r *ScheduleRepository) MinRoomCapacity(ctx context.Context, tx *sqlx.Tx, courseID string) (int, bool, error) {
	const query = `SELECT MIN(r.capacity) FROM schedule_assignments a
        JOIN rooms r ON r.id = a.room_id WHERE a.course_id = $1`
	var capacity *int
	var err error
	if tx != nil {
		err = tx.GetContext(ctx, &capacity, query, courseID)
	} else {
		err = r.db.GetContext(ctx, &capacity, query, courseID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("min room capacity: %w", err)
	}
	if capacity == nil {
		return 0, false, nil
	}
	return *capacity, true, nil
}
