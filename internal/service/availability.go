package service

import (
	"context"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlotView слот с флагами, посчитанными для конкретного пользователя
type SlotView struct {
	*model.Slot
	IsBookedByCallerTeam bool `json:"isBookedByCallerTeam"`
	IsBookedByOthers     bool `json:"isBookedByOthers"`
	HasBookingForStage   bool `json:"hasBookingForStage"`
}

// Availability ответ на запрос доступных слотов
type Availability struct {
	Slots      []SlotView             `json:"slots"`
	SlotsByDay map[string][]SlotView  `json:"slotsByDay"`
	Teams      []model.TeamMembership `json:"teams"`
	UserRole   model.Role             `json:"userRole"`
}

// ListAvailableSlots возвращает доступные слоты класса с флагами для пользователя.
// Флаги не хранятся, а считаются при каждом чтении.
func (s *BookingService) ListAvailableSlots(ctx context.Context, classroomID uuid.UUID, actor *model.User) (*Availability, error) {
	if classroomID == uuid.Nil {
		return nil, invalidInput("classroomId is required")
	}
	if actor == nil {
		return nil, forbidden("authentication required")
	}

	member, err := s.authz.VerifyClassroomMembership(ctx, actor, classroomID)
	if err != nil {
		return nil, storeFailure("check classroom membership", err)
	}
	if !member {
		return nil, forbidden("you are not a member of this classroom")
	}

	slots, err := s.slots.ListOpen(ctx, classroomID, s.Today())
	if err != nil {
		return nil, storeFailure("list slots", err)
	}

	var teams []model.TeamMembership
	if !actor.IsFaculty() {
		teams, err = s.authz.TeamsOf(ctx, actor, classroomID)
		if err != nil {
			return nil, storeFailure("list teams", err)
		}
	}

	teamIDs := make([]uuid.UUID, 0, len(teams))
	callerTeams := make(map[uuid.UUID]struct{}, len(teams))
	for _, t := range teams {
		teamIDs = append(teamIDs, t.TeamID)
		callerTeams[t.TeamID] = struct{}{}
	}

	// Этапы, на которые команды пользователя уже записаны
	teamBookings, err := s.bookings.ListConfirmedByTeams(ctx, teamIDs)
	if err != nil {
		return nil, storeFailure("list team bookings", err)
	}
	bookedStages := make(map[string]struct{}, len(teamBookings))
	for _, b := range teamBookings {
		bookedStages[b.ReviewStage] = struct{}{}
	}

	slotIDs := make([]uuid.UUID, 0, len(slots))
	for _, slot := range slots {
		slotIDs = append(slotIDs, slot.ID)
	}
	slotBookings, err := s.bookings.ListBySlots(ctx, slotIDs)
	if err != nil {
		return nil, storeFailure("list slot bookings", err)
	}
	bySlot := make(map[uuid.UUID][]*model.Booking, len(slotBookings))
	for _, b := range slotBookings {
		bySlot[b.SlotID] = append(bySlot[b.SlotID], b)
	}

	result := &Availability{
		Slots:      make([]SlotView, 0, len(slots)),
		SlotsByDay: make(map[string][]SlotView),
		Teams:      teams,
		UserRole:   actor.Role,
	}
	if result.Teams == nil {
		result.Teams = []model.TeamMembership{}
	}

	for _, slot := range slots {
		view := SlotView{Slot: slot}
		for _, b := range bySlot[slot.ID] {
			if _, ok := callerTeams[b.TeamID]; ok {
				view.IsBookedByCallerTeam = true
			} else {
				view.IsBookedByOthers = true
			}
		}
		_, view.HasBookingForStage = bookedStages[slot.ReviewStage]

		result.Slots = append(result.Slots, view)
		result.SlotsByDay[slot.Day] = append(result.SlotsByDay[slot.Day], view)
	}

	s.logger.Debug("Available slots listed",
		zap.String("classroom_id", classroomID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int("count", len(result.Slots)),
	)

	return result, nil
}
