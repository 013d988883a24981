package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusflow/course-scheduler-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Methods taking
// an ExtContext participate in the caller's transaction so the waitlist
// state machine can read and write under one lock scope.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, user_id, course_id, status, waitlist_position, notes, created_at, updated_at`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":        "created_at",
		"waitlist_position": "waitlist_position",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM enrollments%s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentColumns, clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdate locks and returns one enrollment inside the transaction.
func (r *EnrollmentRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE", enrollmentColumns)
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// LockCourse locks every enrollment row of a course so concurrent
// approve/deny/reposition calls serialize on the same scope.
func (r *EnrollmentRepository) LockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM enrollments WHERE course_id = $1 FOR UPDATE`, courseID); err != nil {
		return fmt.Errorf("lock course enrollments: %w", err)
	}
	return nil
}

// ExistsOpen reports whether the user already has a non-denied enrollment
// for the course.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM enrollments
        WHERE user_id = $1 AND course_id = $2 AND status <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, courseID, models.EnrollmentStatusDenied); err != nil {
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return count > 0, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, user_id, course_id, status, waitlist_position, notes, created_at, updated_at)
        VALUES (:id, :user_id, :course_id, :status, :waitlist_position, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// CountApproved returns the approved seat count for a course, optionally
// excluding one enrollment.
func (r *EnrollmentRepository) CountApproved(ctx context.Context, tx *sqlx.Tx, courseID, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	args := []interface{}{courseID, models.EnrollmentStatusApproved}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count approved enrollments: %w", err)
	}
	return count, nil
}

// ListWaitlisted returns the course's waitlist ordered by position.
func (r *EnrollmentRepository) ListWaitlisted(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE course_id = $1 AND status = $2 ORDER BY waitlist_position`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := tx.SelectContext(ctx, &enrollments, query, courseID, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateState writes status, position, and notes for one enrollment.
func (r *EnrollmentRepository) UpdateState(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus, position *int, notes string) error {
	const query = `UPDATE enrollments SET status = $2, waitlist_position = $3, notes = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, position, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment state: %w", err)
	}
	return nil
}

// UpdatePosition moves a waitlisted enrollment without touching its notes.
func (r *EnrollmentRepository) UpdatePosition(ctx context.Context, tx *sqlx.Tx, id string, position int) error {
	const query = `UPDATE enrollments SET waitlist_position = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, position, time.Now().UTC()); err != nil {
		return fmt.Errorf("update waitlist position: %w", err)
	}
	return nil
}
