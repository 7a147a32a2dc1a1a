package httpapi

import (
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/google/uuid"
)

type slotRequest struct {
	SlotID uuid.UUID `json:"slotId"`
}

type bookRequest struct {
	SlotID uuid.UUID `json:"slotId"`
	TeamID uuid.UUID `json:"teamId"`
}

type cancelRequest struct {
	BookingID uuid.UUID `json:"bookingId"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// slotResponse слот с датами в виде YYYY-MM-DD
type slotResponse struct {
	ID              uuid.UUID `json:"id"`
	ClassroomID     uuid.UUID `json:"classroomId"`
	Day             string    `json:"day"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	Duration        int       `json:"duration"`
	ReviewStage     string    `json:"reviewStage"`
	BookingDeadline string    `json:"bookingDeadline"`
	IsAvailable     bool      `json:"isAvailable"`
	IsWithdrawn     bool      `json:"isWithdrawn"`
}

func toSlot(s *model.Slot) *slotResponse {
	if s == nil {
		return nil
	}
	return &slotResponse{
		ID:              s.ID,
		ClassroomID:     s.ClassroomID,
		Day:             s.Day,
		Date:            s.Date.Format(model.DateLayout),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Duration:        s.Duration,
		ReviewStage:     s.ReviewStage,
		BookingDeadline: s.BookingDeadline.Format(model.DateLayout),
		IsAvailable:     s.IsAvailable,
		IsWithdrawn:     s.IsWithdrawn,
	}
}

func toSlots(slots []*model.Slot) []*slotResponse {
	out := make([]*slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlot(s))
	}
	return out
}

type slotViewResponse struct {
	slotResponse
	IsBookedByCallerTeam bool `json:"isBookedByCallerTeam"`
	IsBookedByOthers     bool `json:"isBookedByOthers"`
	HasBookingForStage   bool `json:"hasBookingForStage"`
}

func toSlotViews(views []service.SlotView) []slotViewResponse {
	out := make([]slotViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, slotViewResponse{
			slotResponse:         *toSlot(v.Slot),
			IsBookedByCallerTeam: v.IsBookedByCallerTeam,
			IsBookedByOthers:     v.IsBookedByOthers,
			HasBookingForStage:   v.HasBookingForStage,
		})
	}
	return out
}

type availabilityResponse struct {
	Slots      []slotViewResponse            `json:"slots"`
	SlotsByDay map[string][]slotViewResponse `json:"slotsByDay"`
	Teams      []model.TeamMembership        `json:"teams"`
	UserRole   model.Role                    `json:"userRole"`
}

func toAvailability(a *service.Availability) availabilityResponse {
	byDay := make(map[string][]slotViewResponse, len(a.SlotsByDay))
	for day, views := range a.SlotsByDay {
		byDay[day] = toSlotViews(views)
	}

	teams := a.Teams
	if teams == nil {
		teams = []model.TeamMembership{}
	}

	return availabilityResponse{
		Slots:      toSlotViews(a.Slots),
		SlotsByDay: byDay,
		Teams:      teams,
		UserRole:   a.UserRole,
	}
}

type bookingResponse struct {
	ID          uuid.UUID     `json:"id"`
	SlotID      uuid.UUID     `json:"slotId"`
	TeamID      uuid.UUID     `json:"teamId"`
	ReviewStage string        `json:"reviewStage"`
	IsConfirmed bool          `json:"isConfirmed"`
	CreatedBy   uuid.UUID     `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	Slot        *slotResponse `json:"slot,omitempty"`
}

func toBooking(b *model.Booking) *bookingResponse {
	return &bookingResponse{
		ID:          b.ID,
		SlotID:      b.SlotID,
		TeamID:      b.TeamID,
		ReviewStage: b.ReviewStage,
		IsConfirmed: b.IsConfirmed,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		Slot:        toSlot(b.Slot),
	}
}

type publishResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Slots   []*slotResponse `json:"slots"`
}

type bookingEnvelope struct {
	Success bool             `json:"success"`
	Booking *bookingResponse `json:"booking"`
}

type slotEnvelope struct {
	Success bool          `json:"success"`
	Slot    *slotResponse `json:"slot"`
}

type deleteResponse struct {
	Success         bool  `json:"success"`
	BookingsRemoved int64 `json:"bookingsRemoved"`
}

type successResponse struct {
	Success bool `json:"success"`
}
