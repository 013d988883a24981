package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/course-scheduler-api/internal/models"
)

func TestEnrollmentRepositoryListWaitlisted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "waitlist_position", "notes", "created_at", "updated_at"}).
		AddRow("e1", "user-1", "course-1", models.EnrollmentStatusWaitlisted, 1, "", time.Now(), time.Now()).
		AddRow("e2", "user-2", "course-1", models.EnrollmentStatusWaitlisted, 2, "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE course_id = $1 AND status = $2 ORDER BY waitlist_position")).
		WithArgs("course-1", models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	waitlist, err := repo.ListWaitlisted(context.Background(), tx, "course-1")
	require.NoError(t, err)
	require.Len(t, waitlist, 2)
	assert.Equal(t, 1, *waitlist[0].WaitlistPosition)
	assert.Equal(t, 2, *waitlist[1].WaitlistPosition)
}

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND course_id = $2 AND status <> $3")).
		WithArgs("user-1", "course-1", models.EnrollmentStatusDenied).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsOpen(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{UserID: "user-1", CourseID: "course-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	position := 2
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, waitlist_position = $3, notes = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("e1", models.EnrollmentStatusWaitlisted, position, "full", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateState(context.Background(), tx, "e1", models.EnrollmentStatusWaitlisted, &position, "full"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "status", "waitlist_position", "notes", "created_at", "updated_at"}).
		AddRow("e1", "user-1", "course-1", models.EnrollmentStatusPending, nil, "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE course_id = $1 AND status = $2")).
		WithArgs("course-1", models.EnrollmentStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2")).
		WithArgs("course-1", models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		CourseID: "course-1",
		Status:   models.EnrollmentStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
