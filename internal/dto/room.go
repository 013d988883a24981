package dto

// CreateRoomRequest registers a new room.
type CreateRoomRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
	Active   *bool  `json:"active"`
}

// UpdateRoomRequest applies partial changes to a room.
type UpdateRoomRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,min=1"`
	Active   *bool   `json:"active,omitempty"`
}
