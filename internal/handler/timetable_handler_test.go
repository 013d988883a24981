package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/models"
	"github.com/campusflow/course-scheduler-api/internal/service"
)

type roomCatalogMock struct {
	rooms []models.Room
}

func (m *roomCatalogMock) ListActive(ctx context.Context) ([]models.Room, error) {
	return m.rooms, nil
}

func (m *roomCatalogMock) FindByID(ctx context.Context, id string) (*models.Room, error) {
	for _, room := range m.rooms {
		if room.ID == id {
			copied := room
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type courseCatalogMock struct {
	course *models.Course
}

func (m *courseCatalogMock) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course != nil && m.course.ID == id {
		copied := *m.course
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type assignmentRepoMock struct {
	detailed []models.AssignmentDetail
}

func (m *assignmentRepoMock) ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleAssignment, error) {
	return nil, nil
}

func (m *assignmentRepoMock) ListByCourseForUpdate(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.ScheduleAssignment, error) {
	return nil, nil
}

func (m *assignmentRepoMock) ListDetailed(ctx context.Context, excludeCourseID string) ([]models.AssignmentDetail, error) {
	return m.detailed, nil
}

func (m *assignmentRepoMock) ListDetailedTx(ctx context.Context, tx *sqlx.Tx, excludeCourseID string) ([]models.AssignmentDetail, error) {
	return m.detailed, nil
}

func (m *assignmentRepoMock) LockRooms(ctx context.Context, tx *sqlx.Tx, roomIDs []string) error {
	return nil
}

func (m *assignmentRepoMock) Create(ctx context.Context, tx *sqlx.Tx, assignment *models.ScheduleAssignment) error {
	assignment.ID = "assign-1"
	return nil
}

func (m *assignmentRepoMock) ReplaceForCourse(ctx context.Context, tx *sqlx.Tx, courseID string, assignments []models.ScheduleAssignment) error {
	return nil
}

func (m *assignmentRepoMock) ListOverlapping(ctx context.Context, day models.Day, startTime, endTime string) ([]models.ScheduleAssignment, error) {
	return nil, nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func (m *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newTimetableHandlerFixture(t *testing.T, detailed []models.AssignmentDetail) *TimetableHandler {
	t.Helper()
	rooms := &roomCatalogMock{rooms: []models.Room{{ID: "room-1", Name: "Hall A", Capacity: 40, Active: true}}}
	courses := &courseCatalogMock{course: &models.Course{
		ID: "course-1", Title: "Algorithms", MaxEnrollment: 30, DesiredDays: "MONDAY", Active: true,
	}}
	assignments := &assignmentRepoMock{detailed: detailed}

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback()
	t.Cleanup(func() { db.Close() })

	timetable := service.NewTimetableService(
		rooms, courses, assignments, nil,
		&txProviderMock{db: sqlx.NewDb(db, "sqlmock")},
		nil, nil,
		validator.New(), zap.NewNop(), service.TimetableConfig{},
	)
	return NewTimetableHandler(timetable, nil, zap.NewNop())
}

func TestTimetableHandlerCheckAvailabilityInvalidWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rooms/availability?day=MONDAY&start=11:00&end=10:00", nil)
	c.Request = req

	handler.CheckAvailability(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerCheckAvailabilityOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/rooms/availability?day=MONDAY&start=09:00&end=10:30", nil)
	c.Request = req

	handler.CheckAvailability(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "room-1")
}

func TestTimetableHandlerScheduleManuallyConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(t, []models.AssignmentDetail{
		{
			ScheduleAssignment: models.ScheduleAssignment{
				ID: "a1", CourseID: "course-2", RoomID: "room-1",
				DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:30",
			},
			CourseTitle: "Statistics", TeacherName: "Prof. Okafor", RoomName: "Hall A",
		},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"room_id":"room-1","day":"MONDAY","slot_index":2}`)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/schedule", body)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.ScheduleManually(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "Statistics")
}

func TestTimetableHandlerApplyOptionBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/timetable/apply", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.ApplyOption(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
