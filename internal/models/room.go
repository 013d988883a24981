package models

import "time"

// Room is a schedulable location owned by the admin domain.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter provides filters for listing rooms.
type RoomFilter struct {
	Active      *bool
	MinCapacity int
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
