package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/dto"
	"github.com/campusflow/course-scheduler-api/internal/models"
	appErrors "github.com/campusflow/course-scheduler-api/pkg/errors"
)

func TestRequestEnrollmentCreatesPending(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{})

	enrollment, err := fixture.service.Request(context.Background(), dto.RequestEnrollmentRequest{
		UserID: "user-1", CourseID: "course-1", Notes: "first come",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Nil(t, enrollment.WaitlistPosition)
}

func TestRequestEnrollmentRejectsDuplicate(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusPending},
		},
	})

	_, err := fixture.service.Request(context.Background(), dto.RequestEnrollmentRequest{
		UserID: "user-1", CourseID: "course-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRequestEnrollmentAllowsRetryAfterDenial(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusDenied},
		},
	})

	enrollment, err := fixture.service.Request(context.Background(), dto.RequestEnrollmentRequest{
		UserID: "user-1", CourseID: "course-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "e1", enrollment.ID, "denied enrollments stay terminal")
}

func TestApproveGrantsSeatWhileCapacityOpen(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusPending},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	enrollment, err := fixture.service.Approve(context.Background(), "e1", dto.ReviewEnrollmentRequest{Notes: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	assert.Nil(t, enrollment.WaitlistPosition)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestApproveWaitlistsWhenRoomCapsCourse(t *testing.T) {
	// Course allows 30 but its scheduled room only holds 2, so the third
	// and fourth approvals land on the waitlist in review order.
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		minRoomCapacity: 2,
		scheduled:       true,
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "e2", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "e3", UserID: "user-3", CourseID: "course-1", Status: models.EnrollmentStatusPending},
			{ID: "e4", UserID: "user-4", CourseID: "course-1", Status: models.EnrollmentStatusPending},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()
	third, err := fixture.service.Approve(context.Background(), "e3", dto.ReviewEnrollmentRequest{})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusWaitlisted, third.Status)
	require.NotNil(t, third.WaitlistPosition)
	assert.Equal(t, 1, *third.WaitlistPosition)

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()
	fourth, err := fixture.service.Approve(context.Background(), "e4", dto.ReviewEnrollmentRequest{})
	require.NoError(t, err)
	require.NotNil(t, fourth.WaitlistPosition)
	assert.Equal(t, 2, *fourth.WaitlistPosition)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestApproveRejectsNonPending(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Approve(context.Background(), "e1", dto.ReviewEnrollmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestDenyWaitlistedClosesGap(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "w1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
			{ID: "w2", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(2)},
			{ID: "w3", UserID: "user-3", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(3)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	denied, err := fixture.service.Deny(context.Background(), "w2", dto.ReviewEnrollmentRequest{Notes: "withdrawn"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDenied, denied.Status)
	assert.Nil(t, denied.WaitlistPosition)

	assert.Equal(t, []string{"w1", "w3"}, fixture.enrollments.waitlistOrder("course-1"))
	assert.Equal(t, 1, *fixture.enrollments.items["w1"].WaitlistPosition)
	assert.Equal(t, 2, *fixture.enrollments.items["w3"].WaitlistPosition)
}

func TestDenyApprovedPromotesWaitlistHead(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		minRoomCapacity: 2,
		scheduled:       true,
		enrollments: []models.Enrollment{
			{ID: "a1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "a2", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "w1", UserID: "user-3", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
			{ID: "w2", UserID: "user-4", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(2)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	_, err := fixture.service.Deny(context.Background(), "a1", dto.ReviewEnrollmentRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusApproved, fixture.enrollments.items["w1"].Status)
	assert.Nil(t, fixture.enrollments.items["w1"].WaitlistPosition)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, fixture.enrollments.items["w2"].Status)
	assert.Equal(t, 1, *fixture.enrollments.items["w2"].WaitlistPosition)
}

func TestDenyApprovedWithoutPromotionFlag(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		promotionDisabled: true,
		enrollments: []models.Enrollment{
			{ID: "a1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "w1", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	_, err := fixture.service.Deny(context.Background(), "a1", dto.ReviewEnrollmentRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, fixture.enrollments.items["w1"].Status)
}

func TestDenyAlreadyDenied(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusDenied},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Deny(context.Background(), "e1", dto.ReviewEnrollmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRepositionShiftsBlock(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "w1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
			{ID: "w2", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(2)},
			{ID: "w3", UserID: "user-3", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(3)},
			{ID: "w4", UserID: "user-4", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(4)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	moved, err := fixture.service.Reposition(context.Background(), "w4", dto.RepositionWaitlistRequest{NewPosition: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, *moved.WaitlistPosition)
	assert.Equal(t, []string{"w1", "w4", "w2", "w3"}, fixture.enrollments.waitlistOrder("course-1"))

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	moved, err = fixture.service.Reposition(context.Background(), "w1", dto.RepositionWaitlistRequest{NewPosition: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, *moved.WaitlistPosition)
	assert.Equal(t, []string{"w4", "w2", "w3", "w1"}, fixture.enrollments.waitlistOrder("course-1"))
}

func TestRepositionOutOfRangeLeavesListUntouched(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "w1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
			{ID: "w2", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(2)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Reposition(context.Background(), "w1", dto.RepositionWaitlistRequest{NewPosition: 9})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWaitlistPosition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"w1", "w2"}, fixture.enrollments.waitlistOrder("course-1"))
}

func TestRepositionRejectsNonWaitlisted(t *testing.T) {
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		enrollments: []models.Enrollment{
			{ID: "e1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Reposition(context.Background(), "e1", dto.RepositionWaitlistRequest{NewPosition: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestReconcileWaitlistFillsOpenSeats(t *testing.T) {
	// Capacity rose to 3 after a schedule change; one seat is taken, so
	// the first two waitlisted entries come off and the last moves up.
	fixture := newWaitlistFixture(t, waitlistFixtureConfig{
		minRoomCapacity: 3,
		scheduled:       true,
		enrollments: []models.Enrollment{
			{ID: "a1", UserID: "user-1", CourseID: "course-1", Status: models.EnrollmentStatusApproved},
			{ID: "w1", UserID: "user-2", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(1)},
			{ID: "w2", UserID: "user-3", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(2)},
			{ID: "w3", UserID: "user-4", CourseID: "course-1", Status: models.EnrollmentStatusWaitlisted, WaitlistPosition: intPtr(3)},
		},
	})

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	require.NoError(t, fixture.service.ReconcileWaitlist(context.Background(), "course-1"))

	assert.Equal(t, models.EnrollmentStatusApproved, fixture.enrollments.items["w1"].Status)
	assert.Equal(t, models.EnrollmentStatusApproved, fixture.enrollments.items["w2"].Status)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, fixture.enrollments.items["w3"].Status)
	assert.Equal(t, 1, *fixture.enrollments.items["w3"].WaitlistPosition)
}

// --- Fixtures ---

type waitlistFixtureConfig struct {
	course            *models.Course
	enrollments       []models.Enrollment
	minRoomCapacity   int
	scheduled         bool
	promotionDisabled bool
}

type waitlistFixture struct {
	service     *WaitlistService
	enrollments *enrollmentRepoStub
	mock        sqlmock.Sqlmock
}

func newWaitlistFixture(t *testing.T, cfg waitlistFixtureConfig) *waitlistFixture {
	t.Helper()

	course := cfg.course
	if course == nil {
		course = &models.Course{
			ID: "course-1", Title: "Algorithms", MaxEnrollment: 30,
			DesiredDays: "MONDAY,WEDNESDAY", Active: true,
		}
	}
	courses := &courseCatalogStub{items: map[string]*models.Course{course.ID: course}}
	enrollments := newEnrollmentRepoStub(cfg.enrollments)
	capacities := capacityReaderStub{min: cfg.minRoomCapacity, scheduled: cfg.scheduled}
	tx, mock := newTxProviderMock(t)

	service := NewWaitlistService(
		enrollments,
		courses,
		capacities,
		tx,
		nil,
		validator.New(),
		zap.NewNop(),
		!cfg.promotionDisabled,
	)
	return &waitlistFixture{service: service, enrollments: enrollments, mock: mock}
}

type enrollmentRepoStub struct {
	items map[string]*models.Enrollment
	seq   int
}

func newEnrollmentRepoStub(seed []models.Enrollment) *enrollmentRepoStub {
	stub := &enrollmentRepoStub{items: make(map[string]*models.Enrollment)}
	for i := range seed {
		enrollment := seed[i]
		stub.items[enrollment.ID] = &enrollment
	}
	return stub
}

func (s *enrollmentRepoStub) waitlistOrder(courseID string) []string {
	waitlisted, _ := s.ListWaitlisted(context.Background(), nil, courseID)
	ids := make([]string, 0, len(waitlisted))
	for _, entry := range waitlisted {
		ids = append(ids, entry.ID)
	}
	return ids
}

func (s *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var list []models.Enrollment
	for _, enrollment := range s.items {
		if filter.CourseID != "" && enrollment.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && enrollment.Status != filter.Status {
			continue
		}
		list = append(list, *enrollment)
	}
	return list, len(list), nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if enrollment, ok := s.items[id]; ok {
		copied := *enrollment
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	return s.FindByID(ctx, id)
}

func (s *enrollmentRepoStub) LockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	return nil
}

func (s *enrollmentRepoStub) ExistsOpen(ctx context.Context, userID, courseID string) (bool, error) {
	for _, enrollment := range s.items {
		if enrollment.UserID == userID && enrollment.CourseID == courseID && enrollment.Status != models.EnrollmentStatusDenied {
			return true, nil
		}
	}
	return false, nil
}

func (s *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	s.seq++
	enrollment.ID = fmt.Sprintf("enroll-%d", s.seq)
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	copied := *enrollment
	s.items[enrollment.ID] = &copied
	return nil
}

func (s *enrollmentRepoStub) CountApproved(ctx context.Context, tx *sqlx.Tx, courseID, excludeID string) (int, error) {
	count := 0
	for _, enrollment := range s.items {
		if enrollment.CourseID != courseID || enrollment.Status != models.EnrollmentStatusApproved {
			continue
		}
		if excludeID != "" && enrollment.ID == excludeID {
			continue
		}
		count++
	}
	return count, nil
}

func (s *enrollmentRepoStub) ListWaitlisted(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, enrollment := range s.items {
		if enrollment.CourseID == courseID && enrollment.Status == models.EnrollmentStatusWaitlisted {
			list = append(list, *enrollment)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return *list[i].WaitlistPosition < *list[j].WaitlistPosition
	})
	return list, nil
}

func (s *enrollmentRepoStub) UpdateState(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus, position *int, notes string) error {
	enrollment, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	enrollment.Status = status
	if position != nil {
		copied := *position
		enrollment.WaitlistPosition = &copied
	} else {
		enrollment.WaitlistPosition = nil
	}
	enrollment.Notes = notes
	return nil
}

func (s *enrollmentRepoStub) UpdatePosition(ctx context.Context, tx *sqlx.Tx, id string, position int) error {
	enrollment, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	copied := position
	enrollment.WaitlistPosition = &copied
	return nil
}

type capacityReaderStub struct {
	min       int
	scheduled bool
}

func (s capacityReaderStub) MinRoomCapacity(ctx context.Context, tx *sqlx.Tx, courseID string) (int, bool, error) {
	return s.min, s.scheduled, nil
}

func intPtr(v int) *int {
	return &v
}
