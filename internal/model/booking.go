package model

import (
	"time"

	"github.com/google/uuid"
)

type Booking struct {
	ID          uuid.UUID `json:"id"`
	SlotID      uuid.UUID `json:"slotId"`
	TeamID      uuid.UUID `json:"teamId"`
	ReviewStage string    `json:"reviewStage"` // копия slot.review_stage, нужна для уникального индекса
	IsConfirmed bool      `json:"isConfirmed"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`

	// Дополнительные поля для удобства (не из БД)
	Slot *Slot `json:"slot,omitempty"`
}
