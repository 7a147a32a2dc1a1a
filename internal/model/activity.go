package model

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivitySlotsPublished   ActivityType = "slots_published"
	ActivitySlotBooked       ActivityType = "slot_booked"
	ActivityBookingCancelled ActivityType = "booking_cancelled"
	ActivitySlotDeleted      ActivityType = "slot_deleted"
	ActivitySlotWithdrawn    ActivityType = "slot_withdrawn"
	ActivitySlotReopened     ActivityType = "slot_reopened"
)

// Activity событие для журнала активности.
// Details сериализуется в JSON как есть.
type Activity struct {
	Type        ActivityType   `json:"type"`
	ActorID     uuid.UUID      `json:"actorId"`
	ClassroomID uuid.UUID      `json:"classroomId"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"createdAt"`
}
