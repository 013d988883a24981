package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/dto"
	"github.com/campusflow/course-scheduler-api/internal/models"
	appErrors "github.com/campusflow/course-scheduler-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error)
	LockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error
	ExistsOpen(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	CountApproved(ctx context.Context, tx *sqlx.Tx, courseID, excludeID string) (int, error)
	ListWaitlisted(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.Enrollment, error)
	UpdateState(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus, position *int, notes string) error
	UpdatePosition(ctx context.Context, tx *sqlx.Tx, id string, position int) error
}

type capacityReader interface {
	MinRoomCapacity(ctx context.Context, tx *sqlx.Tx, courseID string) (int, bool, error)
}

// WaitlistService runs the enrollment state machine. Every mutating
// operation serializes per course: an in-process lock plus row locks on
// the course's enrollment rows inside one transaction.
type WaitlistService struct {
	enrollments      enrollmentRepository
	courses          courseCatalog
	capacities       capacityReader
	tx               txProvider
	metrics          *MetricsService
	locks            *courseLocks
	promotionEnabled bool
	validator        *validator.Validate
	logger           *zap.Logger
}

// NewWaitlistService wires the enrollment workflow dependencies.
func NewWaitlistService(
	enrollments enrollmentRepository,
	courses courseCatalog,
	capacities capacityReader,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	promotionEnabled bool,
) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		enrollments:      enrollments,
		courses:          courses,
		capacities:       capacities,
		tx:               tx,
		metrics:          metrics,
		locks:            newCourseLocks(),
		promotionEnabled: promotionEnabled,
		validator:        validate,
		logger:           logger,
	}
}

// Request files a new PENDING enrollment. A user may hold at most one
// non-denied enrollment per course.
func (s *WaitlistService) Request(ctx context.Context, req dto.RequestEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request payload")
	}
	course, err := s.getCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}
	exists, err := s.enrollments.ExistsOpen(ctx, req.UserID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has an open enrollment for this course")
	}

	enrollment := &models.Enrollment{
		UserID:   req.UserID,
		CourseID: req.CourseID,
		Status:   models.EnrollmentStatusPending,
		Notes:    req.Notes,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// List returns enrollments matching the filter with the total count.
func (s *WaitlistService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Get returns one enrollment.
func (s *WaitlistService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Approve reviews a PENDING request. When the course still has an open
// seat the request is approved; when it is full the request is moved to
// the waitlist tail instead. A full course is an outcome here, not an
// error.
func (s *WaitlistService) Approve(ctx context.Context, id string, req dto.ReviewEnrollmentRequest) (*models.Enrollment, error) {
	var result *models.Enrollment
	err := s.withCourseTx(ctx, id, func(tx *sqlx.Tx, enrollment *models.Enrollment, course *models.Course) error {
		if enrollment.Status != models.EnrollmentStatusPending {
			return appErrors.Clone(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("only pending requests can be approved, current status is %s", enrollment.Status))
		}

		capacity, err := s.effectiveCapacity(ctx, tx, course)
		if err != nil {
			return err
		}
		approved, err := s.enrollments.CountApproved(ctx, tx, course.ID, enrollment.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved seats")
		}

		if approved < capacity {
			if err := s.enrollments.UpdateState(ctx, tx, enrollment.ID, models.EnrollmentStatusApproved, nil, req.Notes); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
			}
			enrollment.Status = models.EnrollmentStatusApproved
			enrollment.WaitlistPosition = nil
		} else {
			waitlist, err := s.enrollments.ListWaitlisted(ctx, tx, course.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
			}
			position := len(waitlist) + 1
			if err := s.enrollments.UpdateState(ctx, tx, enrollment.ID, models.EnrollmentStatusWaitlisted, &position, req.Notes); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waitlist enrollment")
			}
			enrollment.Status = models.EnrollmentStatusWaitlisted
			enrollment.WaitlistPosition = &position
		}
		enrollment.Notes = req.Notes
		result = enrollment
		return nil
	})
	return result, err
}

// Deny moves an enrollment to its terminal DENIED state. Denying a
// waitlisted entry closes the position gap; denying an approved entry
// frees a seat and promotes from the waitlist head.
func (s *WaitlistService) Deny(ctx context.Context, id string, req dto.ReviewEnrollmentRequest) (*models.Enrollment, error) {
	var result *models.Enrollment
	err := s.withCourseTx(ctx, id, func(tx *sqlx.Tx, enrollment *models.Enrollment, course *models.Course) error {
		if enrollment.Status == models.EnrollmentStatusDenied {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is already denied")
		}
		wasApproved := enrollment.Status == models.EnrollmentStatusApproved
		wasWaitlisted := enrollment.Status == models.EnrollmentStatusWaitlisted

		if err := s.enrollments.UpdateState(ctx, tx, enrollment.ID, models.EnrollmentStatusDenied, nil, req.Notes); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deny enrollment")
		}
		enrollment.Status = models.EnrollmentStatusDenied
		enrollment.WaitlistPosition = nil
		enrollment.Notes = req.Notes

		if wasWaitlisted {
			if err := s.compactWaitlist(ctx, tx, course.ID); err != nil {
				return err
			}
		}
		if wasApproved && s.promotionEnabled {
			if err := s.promote(ctx, tx, course); err != nil {
				return err
			}
		}
		result = enrollment
		return nil
	})
	return result, err
}

// Reposition moves one waitlisted enrollment to a new position and shifts
// the block between old and new by one. The target range is validated
// before anything mutates.
func (s *WaitlistService) Reposition(ctx context.Context, id string, req dto.RepositionWaitlistRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reposition payload")
	}
	var result *models.Enrollment
	err := s.withCourseTx(ctx, id, func(tx *sqlx.Tx, enrollment *models.Enrollment, course *models.Course) error {
		if enrollment.Status != models.EnrollmentStatusWaitlisted {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "only waitlisted enrollments can be repositioned")
		}
		waitlist, err := s.enrollments.ListWaitlisted(ctx, tx, course.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
		}
		if req.NewPosition < 1 || req.NewPosition > len(waitlist) {
			return appErrors.Clone(appErrors.ErrInvalidWaitlistPosition,
				fmt.Sprintf("position %d outside range 1-%d", req.NewPosition, len(waitlist)))
		}

		oldPosition := *enrollment.WaitlistPosition
		newPosition := req.NewPosition
		if oldPosition == newPosition {
			result = enrollment
			return nil
		}

		for _, entry := range waitlist {
			if entry.ID == enrollment.ID {
				continue
			}
			position := *entry.WaitlistPosition
			switch {
			case newPosition < oldPosition && position >= newPosition && position < oldPosition:
				position++
			case newPosition > oldPosition && position > oldPosition && position <= newPosition:
				position--
			default:
				continue
			}
			if err := s.enrollments.UpdatePosition(ctx, tx, entry.ID, position); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to shift waitlist entry")
			}
		}
		if err := s.enrollments.UpdatePosition(ctx, tx, enrollment.ID, newPosition); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move waitlist entry")
		}
		enrollment.WaitlistPosition = &newPosition
		result = enrollment
		return nil
	})
	return result, err
}

// ReconcileWaitlist promotes from the waitlist head while seats are open.
// Called after schedule changes raise a course's effective capacity.
func (s *WaitlistService) ReconcileWaitlist(ctx context.Context, courseID string) error {
	if !s.promotionEnabled {
		return nil
	}
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(courseID)
	defer unlock()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.enrollments.LockCourse(ctx, tx, courseID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course enrollments")
		return err
	}
	if err = s.promote(ctx, tx, course); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = mapTxError(err, "failed to commit waitlist reconciliation")
		return err
	}
	return nil
}

// promote fills open seats in waitlist order and renumbers the remainder
// from 1. Runs inside the caller's transaction.
func (s *WaitlistService) promote(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	capacity, err := s.effectiveCapacity(ctx, tx, course)
	if err != nil {
		return err
	}
	approved, err := s.enrollments.CountApproved(ctx, tx, course.ID, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved seats")
	}
	waitlist, err := s.enrollments.ListWaitlisted(ctx, tx, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
	}

	open := capacity - approved
	if open < 0 {
		open = 0
	}
	if open > len(waitlist) {
		open = len(waitlist)
	}

	for i, entry := range waitlist {
		if i < open {
			if err := s.enrollments.UpdateState(ctx, tx, entry.ID, models.EnrollmentStatusApproved, nil, entry.Notes); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
			}
			s.metrics.RecordPromotion()
			s.logger.Info("promoted enrollment from waitlist",
				zap.String("enrollment_id", entry.ID),
				zap.String("course_id", course.ID))
			continue
		}
		position := i - open + 1
		if entry.WaitlistPosition != nil && *entry.WaitlistPosition == position {
			continue
		}
		if err := s.enrollments.UpdatePosition(ctx, tx, entry.ID, position); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber waitlist entry")
		}
	}
	return nil
}

// compactWaitlist renumbers the course's waitlist to a contiguous 1..n
// sequence after a removal.
func (s *WaitlistService) compactWaitlist(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	waitlist, err := s.enrollments.ListWaitlisted(ctx, tx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist")
	}
	for i, entry := range waitlist {
		position := i + 1
		if entry.WaitlistPosition != nil && *entry.WaitlistPosition == position {
			continue
		}
		if err := s.enrollments.UpdatePosition(ctx, tx, entry.ID, position); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renumber waitlist entry")
		}
	}
	return nil
}

// effectiveCapacity is the course cap bounded by the smallest scheduled
// room. An unscheduled course falls back to its own cap.
func (s *WaitlistService) effectiveCapacity(ctx context.Context, tx *sqlx.Tx, course *models.Course) (int, error) {
	capacity := course.MaxEnrollment
	minRoom, scheduled, err := s.capacities.MinRoomCapacity(ctx, tx, course.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve room capacity")
	}
	if scheduled && minRoom < capacity {
		capacity = minRoom
	}
	return capacity, nil
}

// withCourseTx loads the enrollment, locks its course scope, and runs fn
// inside one transaction.
func (s *WaitlistService) withCourseTx(ctx context.Context, enrollmentID string, fn func(tx *sqlx.Tx, enrollment *models.Enrollment, course *models.Course) error) error {
	existing, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	course, err := s.getCourse(ctx, existing.CourseID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(existing.CourseID)
	defer unlock()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.enrollments.LockCourse(ctx, tx, existing.CourseID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course enrollments")
		return err
	}
	enrollment, err := s.enrollments.FindByIDForUpdate(ctx, tx, enrollmentID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment")
		return err
	}

	if err = fn(tx, enrollment, course); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		err = mapTxError(err, "failed to commit enrollment transaction")
		return err
	}
	return nil
}

func (s *WaitlistService) getCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
