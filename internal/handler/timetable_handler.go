package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/dto"
	"github.com/campusflow/course-scheduler-api/internal/service"
	appErrors "github.com/campusflow/course-scheduler-api/pkg/errors"
	"github.com/campusflow/course-scheduler-api/pkg/response"
)

// TimetableHandler exposes option generation, schedule commits, and room
// availability endpoints.
type TimetableHandler struct {
	timetable *service.TimetableService
	waitlist  *service.WaitlistService
	logger    *zap.Logger
}

// NewTimetableHandler constructs TimetableHandler.
func NewTimetableHandler(timetable *service.TimetableService, waitlist *service.WaitlistService, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{timetable: timetable, waitlist: waitlist, logger: logger}
}

// GenerateOptions godoc
// @Summary Generate timetable options for a course
// @Tags Timetable
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/timetable/options [post]
func (h *TimetableHandler) GenerateOptions(c *gin.Context) {
	result, err := h.timetable.GenerateOptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Report != nil {
		response.JSON(c, appErrors.ErrNoRoomAvailable.Status, result, nil)
		return
	}
	response.Created(c, result)
}

// RegenerateOptions godoc
// @Summary Regenerate timetable options, superseding the current batch
// @Tags Timetable
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/timetable/options [put]
func (h *TimetableHandler) RegenerateOptions(c *gin.Context) {
	result, err := h.timetable.RegenerateOptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Report != nil {
		response.JSON(c, appErrors.ErrNoRoomAvailable.Status, result, nil)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListOptions godoc
// @Summary List the current timetable options of a course
// @Tags Timetable
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/timetable/options [get]
func (h *TimetableHandler) ListOptions(c *gin.Context) {
	options, err := h.timetable.ListOptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// ApplyOption godoc
// @Summary Apply a generated option as the course's committed schedule
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ApplyOptionRequest true "Option selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/timetable/apply [post]
func (h *TimetableHandler) ApplyOption(c *gin.Context) {
	var req dto.ApplyOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	courseID := c.Param("id")
	result, err := h.timetable.ApplyOption(c.Request.Context(), courseID, req.OptionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.Conflicts) > 0 {
		response.JSON(c, appErrors.ErrScheduleConflict.Status, result, nil)
		return
	}
	h.reconcile(c, courseID)
	response.JSON(c, http.StatusOK, result, nil)
}

// ScheduleManually godoc
// @Summary Commit one explicit room/day/slot assignment
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ManualScheduleRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/schedule [post]
func (h *TimetableHandler) ScheduleManually(c *gin.Context) {
	var req dto.ManualScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	courseID := c.Param("id")
	assignment, conflicts, err := h.timetable.ScheduleManually(c.Request.Context(), courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(conflicts) > 0 {
		response.JSON(c, appErrors.ErrScheduleConflict.Status, dto.ApplyOptionResult{Conflicts: conflicts}, nil)
		return
	}
	h.reconcile(c, courseID)
	response.Created(c, assignment)
}

// ListAssignments godoc
// @Summary List the committed schedule of a course
// @Tags Timetable
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedule [get]
func (h *TimetableHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.timetable.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ListGrid godoc
// @Summary List every committed assignment with course and room context
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *TimetableHandler) ListGrid(c *gin.Context) {
	grid, err := h.timetable.ListGrid(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// CheckAvailability godoc
// @Summary List rooms free in a day/time window
// @Tags Rooms
// @Produce json
// @Param day query string true "Day of week"
// @Param start query string true "Window start (HH:MM)"
// @Param end query string true "Window end (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /rooms/availability [get]
func (h *TimetableHandler) CheckAvailability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	rooms, err := h.timetable.CheckAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// reconcile promotes waitlisted enrollments after a schedule commit may
// have raised the course's effective capacity. Best effort: a failure is
// logged, never surfaced to the scheduling caller.
func (h *TimetableHandler) reconcile(c *gin.Context, courseID string) {
	if h.waitlist == nil {
		return
	}
	if err := h.waitlist.ReconcileWaitlist(c.Request.Context(), courseID); err != nil {
		h.logger.Warn("waitlist reconciliation after schedule commit failed",
			zap.String("course_id", courseID), zap.Error(err))
	}
}
