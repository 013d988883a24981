package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusflow/course-scheduler-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "room_id", "day_of_week", "start_time", "end_time", "created_at"}).
		AddRow("a1", "course-1", "room-1", models.Monday, "09:00", "10:30", time.Now()).
		AddRow("a2", "course-1", "room-2", models.Wednesday, "13:00", "14:30", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_assignments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	assignments, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, models.Monday, assignments[0].DayOfWeek)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListDetailedExcludesCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "course_id", "room_id", "day_of_week", "start_time", "end_time", "created_at",
		"course_title", "teacher_name", "room_name",
	}).AddRow("a1", "course-2", "room-1", models.Monday, "09:00", "10:30", time.Now(), "Statistics", "Prof. Okafor", "Hall A")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.course_id <> $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	details, err := repo.ListDetailed(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Statistics", details[0].CourseTitle)
	assert.Equal(t, "Hall A", details[0].RoomName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryLockRoomsSortsIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM rooms WHERE id = ANY($1) ORDER BY id FOR UPDATE")).
		WithArgs(pq.Array([]string{"room-1", "room-9"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("room-1").AddRow("room-9"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	// IDs arrive unsorted; the lock order must not depend on caller order.
	require.NoError(t, repo.LockRooms(context.Background(), tx, []string{"room-9", "room-1"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateInTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	assignment := &models.ScheduleAssignment{
		CourseID: "course-1", RoomID: "room-1",
		DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:30",
	}
	require.NoError(t, repo.Create(context.Background(), tx, assignment))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, assignment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceForCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_assignments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_assignments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	assignments := []models.ScheduleAssignment{
		{RoomID: "room-1", DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:30"},
		{RoomID: "room-2", DayOfWeek: models.Wednesday, StartTime: "13:00", EndTime: "14:30"},
	}
	require.NoError(t, repo.ReplaceForCourse(context.Background(), tx, "course-1", assignments))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, assignments[0].ID)
	assert.Equal(t, "course-1", assignments[0].CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "room_id", "day_of_week", "start_time", "end_time", "created_at"}).
		AddRow("a1", "course-1", "room-1", models.Monday, "09:00", "10:30", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE day_of_week = $1 AND start_time < $3 AND end_time > $2")).
		WithArgs(models.Monday, "10:00", "11:00").
		WillReturnRows(rows)

	assignments, err := repo.ListOverlapping(context.Background(), models.Monday, "10:00", "11:00")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryMinRoomCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(r.capacity) FROM schedule_assignments a")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(25))

	capacity, ok, err := repo.MinRoomCapacity(context.Background(), nil, "course-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25, capacity)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(r.capacity) FROM schedule_assignments a")).
		WithArgs("course-2").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))

	_, ok, err = repo.MinRoomCapacity(context.Background(), nil, "course-2")
	require.NoError(t, err)
	assert.False(t, ok, "unscheduled course has no room bound")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCountByRoom(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_assignments WHERE room_id = $1")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
