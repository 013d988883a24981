package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusflow/course-scheduler-api/internal/dto"
	"github.com/campusflow/course-scheduler-api/internal/models"
	appErrors "github.com/campusflow/course-scheduler-api/pkg/errors"
)

type roomStore interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, id string) error
}

type assignmentCounter interface {
	CountByRoom(ctx context.Context, roomID string) (int, error)
}

// RoomService manages the room registry.
type RoomService struct {
	rooms       roomStore
	assignments assignmentCounter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRoomService constructs the room registry service.
func NewRoomService(rooms roomStore, assignments assignmentCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{rooms: rooms, assignments: assignments, cache: cache, validator: validate, logger: logger}
}

// List returns rooms matching the filter with the total count.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	rooms, total, err := s.rooms.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, total, nil
}

// Get returns one room.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create registers a new room.
func (s *RoomService) Create(ctx context.Context, req dto.CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		Name:     req.Name,
		Location: req.Location,
		Capacity: req.Capacity,
		Active:   true,
	}
	if req.Active != nil {
		room.Active = *req.Active
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidate(ctx)
	return room, nil
}

// Update applies partial changes to a room.
func (s *RoomService) Update(ctx context.Context, id string, req dto.UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		room.Name = *req.Name
	}
	if req.Location != nil {
		room.Location = *req.Location
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Active != nil {
		room.Active = *req.Active
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	s.invalidate(ctx)
	return room, nil
}

// Delete removes a room. Rooms with committed assignments cannot be
// deleted; deactivate them instead.
func (s *RoomService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.assignments.CountByRoom(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count room assignments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "room has committed assignments, deactivate it instead")
	}
	if err := s.rooms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	s.invalidate(ctx)
	return nil
}

func (s *RoomService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, "availability:*")
}
