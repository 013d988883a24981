package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/dto"
	"github.com/campusflow/course-scheduler-api/internal/models"
	appErrors "github.com/campusflow/course-scheduler-api/pkg/errors"
)

type roomCatalog interface {
	ListActive(ctx context.Context) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type assignmentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ScheduleAssignment, error)
	ListByCourseForUpdate(ctx context.Context, tx *sqlx.Tx, courseID string) ([]models.ScheduleAssignment, error)
	ListDetailed(ctx context.Context, excludeCourseID string) ([]models.AssignmentDetail, error)
	ListDetailedTx(ctx context.Context, tx *sqlx.Tx, excludeCourseID string) ([]models.AssignmentDetail, error)
	LockRooms(ctx context.Context, tx *sqlx.Tx, roomIDs []string) error
	Create(ctx context.Context, tx *sqlx.Tx, assignment *models.ScheduleAssignment) error
	ReplaceForCourse(ctx context.Context, tx *sqlx.Tx, courseID string, assignments []models.ScheduleAssignment) error
	ListOverlapping(ctx context.Context, day models.Day, startTime, endTime string) ([]models.ScheduleAssignment, error)
}

type optionRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.TimetableOption, error)
	FindByID(ctx context.Context, id string) (*models.TimetableOption, error)
	ReplaceBatch(ctx context.Context, courseID string, options []models.TimetableOption) error
	DeleteByCourse(ctx context.Context, courseID string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RoomOrdering decides the room iteration order for one generation
// attempt. Injectable so tests can pin a deterministic order.
type RoomOrdering func(attempt int, rooms []models.Room) []models.Room

// RotatingRoomOrdering offsets the room list by the attempt index so
// successive attempts explore different room choices.
func RotatingRoomOrdering(attempt int, rooms []models.Room) []models.Room {
	if len(rooms) == 0 {
		return nil
	}
	offset := attempt % len(rooms)
	ordered := make([]models.Room, 0, len(rooms))
	ordered = append(ordered, rooms[offset:]...)
	ordered = append(ordered, rooms[:offset]...)
	return ordered
}

// TimetableConfig governs generator behaviour.
type TimetableConfig struct {
	OptionCount int
	CacheTTL    time.Duration
}

// TimetableService builds candidate timetables and commits assignments.
type TimetableService struct {
	rooms       roomCatalog
	courses     courseCatalog
	assignments assignmentRepository
	options     optionRepository
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	locks       *courseLocks
	ordering    RoomOrdering
	optionCount int
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTimetableService wires scheduler dependencies.
func NewTimetableService(
	rooms roomCatalog,
	courses courseCatalog,
	assignments assignmentRepository,
	options optionRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OptionCount <= 0 {
		cfg.OptionCount = 3
	}
	return &TimetableService{
		rooms:       rooms,
		courses:     courses,
		assignments: assignments,
		options:     options,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		locks:       newCourseLocks(),
		ordering:    RotatingRoomOrdering,
		optionCount: cfg.OptionCount,
		cacheTTL:    cfg.CacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// SetRoomOrdering overrides the room iteration strategy.
func (s *TimetableService) SetRoomOrdering(ordering RoomOrdering) {
	if ordering != nil {
		s.ordering = ordering
	}
}

// GenerateOptions replaces the course's option batch with freshly built
// candidates. When no full candidate fits, it returns the aggregated
// report and leaves no stale batch behind.
func (s *TimetableService) GenerateOptions(ctx context.Context, courseID string) (*dto.OptionGenerationResult, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	days := course.DesiredDayList()
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course has no desired days configured")
	}
	if course.SessionsPerWeek > 0 && len(days) != course.SessionsPerWeek {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("course wants %d sessions per week but names %d desired days", course.SessionsPerWeek, len(days)))
	}

	unlock := s.locks.Lock(courseID)
	defer unlock()

	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room catalog")
	}
	eligible := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Capacity >= course.MaxEnrollment {
			eligible = append(eligible, room)
		}
	}

	committed, err := s.assignments.ListDetailed(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed assignments")
	}

	start := time.Now()
	options, report := s.buildOptions(course, days, eligible, committed)
	s.metrics.RecordGeneration(len(options), time.Since(start))

	if len(options) == 0 {
		if err := s.options.DeleteByCourse(ctx, courseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard stale options")
		}
		s.invalidateOptionCache(ctx, courseID)
		return &dto.OptionGenerationResult{Report: report}, nil
	}

	if err := s.options.ReplaceBatch(ctx, courseID, options); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable options")
	}
	s.invalidateOptionCache(ctx, courseID)

	stored, err := s.options.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload timetable options")
	}
	return &dto.OptionGenerationResult{Options: stored}, nil
}

// RegenerateOptions is a full idempotent replace of the option batch.
func (s *TimetableService) RegenerateOptions(ctx context.Context, courseID string) (*dto.OptionGenerationResult, error) {
	return s.GenerateOptions(ctx, courseID)
}

// ListOptions returns the current option batch, served from cache when warm.
func (s *TimetableService) ListOptions(ctx context.Context, courseID string) ([]models.TimetableOption, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	key := optionCacheKey(courseID)
	var cached []models.TimetableOption
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	options, err := s.options.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable options")
	}
	_ = s.cache.Set(ctx, key, options, s.cacheTTL)
	return options, nil
}

// ApplyOption re-validates a generated option against the current
// committed state and atomically replaces the course's assignment set.
// Any conflict aborts the whole application.
func (s *TimetableService) ApplyOption(ctx context.Context, courseID, optionID string) (*dto.ApplyOptionResult, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(courseID)
	defer unlock()

	option, err := s.options.FindByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable option not found or superseded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable option")
	}
	if option.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "option does not belong to this course")
	}
	slots, err := option.Slots()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode option slots")
	}
	if len(slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "option contains no sessions")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock the contended rooms first, then re-check every slot against
	// committed state inside the transaction. A concurrent commit into one
	// of these rooms either finished before the lock was granted, in which
	// case the re-check sees its rows, or waits until ours commits.
	if err = s.assignments.LockRooms(ctx, tx, slotRoomIDs(slots)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock rooms")
		return nil, err
	}
	if _, err = s.assignments.ListByCourseForUpdate(ctx, tx, courseID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course assignments")
		return nil, err
	}
	committed, err := s.assignments.ListDetailedTx(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed assignments")
		return nil, err
	}
	var conflicts []models.ConflictDetail
	for _, slot := range slots {
		candidate := SessionCandidate{RoomID: slot.RoomID, Day: slot.Day, StartTime: slot.StartTime, EndTime: slot.EndTime}
		conflicts = append(conflicts, FindConflicts(candidate, committed)...)
	}
	if len(conflicts) > 0 {
		_ = tx.Rollback()
		s.metrics.RecordConflicts("apply_option", len(conflicts))
		return &dto.ApplyOptionResult{Conflicts: conflicts}, nil
	}

	assignments := make([]models.ScheduleAssignment, 0, len(slots))
	for _, slot := range slots {
		assignments = append(assignments, models.ScheduleAssignment{
			CourseID:  courseID,
			RoomID:    slot.RoomID,
			DayOfWeek: slot.Day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	if err = s.assignments.ReplaceForCourse(ctx, tx, courseID, assignments); err != nil {
		err = mapTxError(err, "failed to replace course assignments")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = mapTxError(err, "failed to commit schedule transaction")
		return nil, err
	}

	s.metrics.RecordCommit(len(assignments))
	s.invalidateScheduleCache(ctx, courseID)
	return &dto.ApplyOptionResult{Assignments: assignments}, nil
}

// ScheduleManually validates one explicit room/day/slot assignment against
// every committed assignment system-wide and persists it when clear.
func (s *TimetableService) ScheduleManually(ctx context.Context, courseID string, req dto.ManualScheduleRequest) (*models.ScheduleAssignment, []models.ConflictDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual schedule payload")
	}
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, nil, err
	}
	day, ok := models.ParseDay(req.Day)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	slot, ok := models.SlotByIndex(req.SlotIndex)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot index %d outside catalog range 1-%d", req.SlotIndex, models.SlotCount()))
	}
	room, err := s.rooms.FindByID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if !room.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "room is inactive")
	}

	unlock := s.locks.Lock(courseID)
	defer unlock()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The system-wide conflict check runs inside the transaction, after
	// the room lock, so a concurrent commit for another course into the
	// same room cannot slip between the read and the write.
	if err = s.assignments.LockRooms(ctx, tx, []string{room.ID}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock room")
		return nil, nil, err
	}
	committed, err := s.assignments.ListDetailedTx(ctx, tx, "")
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed assignments")
		return nil, nil, err
	}
	candidate := SessionCandidate{RoomID: room.ID, Day: day, StartTime: slot.StartTime, EndTime: slot.EndTime}
	if conflicts := FindConflicts(candidate, committed); len(conflicts) > 0 {
		_ = tx.Rollback()
		s.metrics.RecordConflicts("manual_schedule", len(conflicts))
		return nil, conflicts, nil
	}

	assignment := &models.ScheduleAssignment{
		CourseID:  courseID,
		RoomID:    room.ID,
		DayOfWeek: day,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}
	if err = s.assignments.Create(ctx, tx, assignment); err != nil {
		err = mapTxError(err, "failed to create assignment")
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		err = mapTxError(err, "failed to commit schedule transaction")
		return nil, nil, err
	}
	s.metrics.RecordCommit(1)
	s.invalidateScheduleCache(ctx, courseID)
	return assignment, nil, nil
}

// CheckAvailability lists active rooms with no overlapping assignment in
// the window.
func (s *TimetableService) CheckAvailability(ctx context.Context, query dto.AvailabilityQuery) ([]models.Room, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	day, ok := models.ParseDay(query.Day)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", query.Day))
	}
	if !validClockTime(query.StartTime) || !validClockTime(query.EndTime) || query.StartTime >= query.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start and end must be HH:MM with start before end")
	}

	key := fmt.Sprintf("availability:%s:%s:%s", day, query.StartTime, query.EndTime)
	var cached []models.Room
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room catalog")
	}
	overlapping, err := s.assignments.ListOverlapping(ctx, day, query.StartTime, query.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overlapping assignments")
	}
	busy := make(map[string]bool, len(overlapping))
	for _, assignment := range overlapping {
		busy[assignment.RoomID] = true
	}
	available := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if !busy[room.ID] {
			available = append(available, room)
		}
	}
	_ = s.cache.Set(ctx, key, available, s.cacheTTL)
	return available, nil
}

// ListAssignments returns the committed schedule of one course.
func (s *TimetableService) ListAssignments(ctx context.Context, courseID string) ([]models.ScheduleAssignment, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListGrid returns every committed assignment with course and room context.
func (s *TimetableService) ListGrid(ctx context.Context) ([]models.AssignmentDetail, error) {
	details, err := s.assignments.ListDetailed(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule grid")
	}
	return details, nil
}

// --- Option construction ---

func (s *TimetableService) buildOptions(course *models.Course, days []models.Day, eligible []models.Room, committed []models.AssignmentDetail) ([]models.TimetableOption, *models.GenerationReport) {
	var options []models.TimetableOption
	seen := make(map[string]bool)
	var firstReport *models.GenerationReport

	for attempt := 0; attempt < s.optionCount; attempt++ {
		slots, report := s.buildOne(course, days, eligible, committed, attempt)
		if report != nil {
			if firstReport == nil {
				firstReport = report
			}
			continue
		}
		signature := optionSignature(slots)
		if seen[signature] {
			continue
		}
		seen[signature] = true

		option := models.TimetableOption{
			OptionNumber:     len(options) + 1,
			UtilizationScore: utilizationScore(course, slots, eligible),
		}
		if err := option.SetSlots(slots); err != nil {
			s.logger.Warn("failed to encode option slots", zap.Error(err))
			continue
		}
		options = append(options, option)
	}

	if len(options) == 0 {
		if firstReport == nil {
			firstReport = &models.GenerationReport{}
		}
		return nil, firstReport
	}
	return options, nil
}

// buildOne attempts a full placement: one session per desired day. A nil
// report means every day was satisfied.
func (s *TimetableService) buildOne(course *models.Course, days []models.Day, eligible []models.Room, committed []models.AssignmentDetail, attempt int) ([]models.OptionSlot, *models.GenerationReport) {
	ordered := s.ordering(attempt, eligible)
	usedRooms := make(map[string]bool)
	var placed []models.ScheduleAssignment
	var slots []models.OptionSlot
	var dayErrors []models.DetailedError
	var roomConflicts []models.ConflictDetail

	for _, day := range days {
		if len(ordered) == 0 {
			dayErrors = append(dayErrors, models.DetailedError{
				Day:     day,
				Message: fmt.Sprintf("no active room holds %d students", course.MaxEnrollment),
			})
			continue
		}

		var dayConflicts []models.ConflictDetail
		found := false
		for _, slot := range models.SlotCatalog() {
			// Diversity heuristic: rooms untouched by this option rank
			// before rooms it already uses.
			for _, room := range splitByUsage(ordered, usedRooms) {
				candidate := SessionCandidate{RoomID: room.ID, Day: day, StartTime: slot.StartTime, EndTime: slot.EndTime}
				if HasConflict(candidate, placed) {
					continue
				}
				if conflicts := FindConflicts(candidate, committed); len(conflicts) > 0 {
					dayConflicts = append(dayConflicts, conflicts...)
					continue
				}
				placed = append(placed, models.ScheduleAssignment{
					RoomID:    room.ID,
					DayOfWeek: day,
					StartTime: slot.StartTime,
					EndTime:   slot.EndTime,
				})
				slots = append(slots, models.OptionSlot{
					Day:       day,
					RoomID:    room.ID,
					StartTime: slot.StartTime,
					EndTime:   slot.EndTime,
				})
				usedRooms[room.ID] = true
				found = true
				break
			}
			if found {
				break
			}
		}
		if !found {
			dayErrors = append(dayErrors, models.DetailedError{
				Day:     day,
				Message: fmt.Sprintf("no conflict-free room and slot for %s", strings.ToLower(string(day))),
			})
			roomConflicts = append(roomConflicts, dedupeConflicts(dayConflicts)...)
		}
	}

	if len(dayErrors) > 0 {
		return nil, &models.GenerationReport{Errors: dayErrors, RoomConflicts: roomConflicts}
	}
	return slots, nil
}

func splitByUsage(rooms []models.Room, used map[string]bool) []models.Room {
	ordered := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if !used[room.ID] {
			ordered = append(ordered, room)
		}
	}
	for _, room := range rooms {
		if used[room.ID] {
			ordered = append(ordered, room)
		}
	}
	return ordered
}

// utilizationScore rewards filling rooms close to course demand and
// penalises sessions pushed to late catalog blocks. Deterministic, and
// monotonic: a tighter room fit or an earlier slot never lowers it.
func utilizationScore(course *models.Course, slots []models.OptionSlot, rooms []models.Room) float64 {
	if len(slots) == 0 {
		return 0
	}
	capacities := make(map[string]int, len(rooms))
	for _, room := range rooms {
		capacities[room.ID] = room.Capacity
	}
	startIndex := make(map[string]int, models.SlotCount())
	for i, slot := range models.SlotCatalog() {
		startIndex[slot.StartTime] = i
	}

	var fill, idle float64
	for _, slot := range slots {
		if capacity := capacities[slot.RoomID]; capacity > 0 {
			fill += float64(course.MaxEnrollment) / float64(capacity)
		}
		idle += float64(startIndex[slot.StartTime])
	}
	return fill/float64(len(slots))*100 - idle
}

func optionSignature(slots []models.OptionSlot) string {
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, fmt.Sprintf("%s|%s|%s", slot.Day, slot.RoomID, slot.StartTime))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

func dedupeConflicts(conflicts []models.ConflictDetail) []models.ConflictDetail {
	seen := make(map[string]bool, len(conflicts))
	result := make([]models.ConflictDetail, 0, len(conflicts))
	for _, conflict := range conflicts {
		if seen[conflict.AssignmentID] {
			continue
		}
		seen[conflict.AssignmentID] = true
		result = append(result, conflict)
	}
	return result
}

// --- Helpers ---

func slotRoomIDs(slots []models.OptionSlot) []string {
	seen := make(map[string]bool, len(slots))
	ids := make([]string, 0, len(slots))
	for _, slot := range slots {
		if !seen[slot.RoomID] {
			seen[slot.RoomID] = true
			ids = append(ids, slot.RoomID)
		}
	}
	return ids
}

func (s *TimetableService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is inactive")
	}
	return course, nil
}

func (s *TimetableService) invalidateOptionCache(ctx context.Context, courseID string) {
	_ = s.cache.Invalidate(ctx, optionCacheKey(courseID))
}

func (s *TimetableService) invalidateScheduleCache(ctx context.Context, courseID string) {
	_ = s.cache.Invalidate(ctx, optionCacheKey(courseID))
	_ = s.cache.Invalidate(ctx, "availability:*")
}

func optionCacheKey(courseID string) string {
	return "options:" + courseID
}

var clockTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func validClockTime(raw string) bool {
	return clockTimePattern.MatchString(raw)
}

// mapTxError surfaces serialization failures as retryable conflicts.
func mapTxError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "40001" {
		return appErrors.Wrap(err, appErrors.ErrConcurrentModification.Code, appErrors.ErrConcurrentModification.Status, appErrors.ErrConcurrentModification.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
