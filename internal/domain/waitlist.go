package domain

import "time"

const (
	CabinAvailable   = "available"
	CabinOccupied    = "occupied"
	CabinMaintenance = "maintenance"
)

type Cabin struct {
	ID                string    `json:"id"`
	ReadingRoomID     string    `json:"reading_room_id"`
	Number            string    `json:"number"`
	Status            string    `json:"status"`
	CurrentOccupantID string    `json:"current_occupant_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type WaitlistEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CabinID       string    `json:"cabin_id"`
	ReadingRoomID string    `json:"reading_room_id"`
	CreatedAt     time.Time `json:"created_at"`
}
