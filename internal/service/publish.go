package service

import (
	"strings"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/google/uuid"
)

const maxSlotsPerPublish = 500

// SlotSpec одно окно из запроса на публикацию
type SlotSpec struct {
	Day       string `json:"day"`
	Date      string `json:"date"`      // YYYY-MM-DD
	StartTime string `json:"startTime"` // HH:MM
	EndTime   string `json:"endTime"`   // HH:MM
}

type PublishRequest struct {
	ClassroomID     uuid.UUID  `json:"classroomId"`
	Slots           []SlotSpec `json:"slots"`
	Duration        int        `json:"duration"`
	ReviewStage     string     `json:"reviewStage"`
	BookingDeadline string     `json:"bookingDeadline"` // YYYY-MM-DD, включительно
}

// build проверяет запрос целиком и собирает слоты.
// Ошибка в любой строке отклоняет весь запрос.
func (r PublishRequest) build(actorID uuid.UUID) ([]*model.Slot, error) {
	if len(r.Slots) == 0 {
		return nil, invalidInput("at least one slot is required")
	}
	if len(r.Slots) > maxSlotsPerPublish {
		return nil, invalidInput("at most %d slots can be published at once", maxSlotsPerPublish)
	}
	if r.Duration <= 0 {
		return nil, invalidInput("duration must be a positive number of minutes")
	}

	stage := strings.TrimSpace(r.ReviewStage)
	if stage == "" {
		return nil, invalidInput("reviewStage is required")
	}

	deadline, err := model.ParseDate(strings.TrimSpace(r.BookingDeadline))
	if err != nil {
		return nil, invalidInput("bookingDeadline must be YYYY-MM-DD")
	}

	slots := make([]*model.Slot, 0, len(r.Slots))
	for i, spec := range r.Slots {
		day := strings.TrimSpace(spec.Day)
		if day == "" {
			return nil, invalidInput("slot %d: day is required", i+1)
		}

		date, err := model.ParseDate(strings.TrimSpace(spec.Date))
		if err != nil {
			return nil, invalidInput("slot %d: date must be YYYY-MM-DD", i+1)
		}

		start, err := model.ParseClock(strings.TrimSpace(spec.StartTime))
		if err != nil {
			return nil, invalidInput("slot %d: startTime must be HH:MM", i+1)
		}
		end, err := model.ParseClock(strings.TrimSpace(spec.EndTime))
		if err != nil {
			return nil, invalidInput("slot %d: endTime must be HH:MM", i+1)
		}

		if end <= start {
			return nil, invalidInput("slot %d: endTime must be after startTime", i+1)
		}
		if end-start != r.Duration {
			return nil, invalidInput("slot %d: length %d min does not match duration %d min", i+1, end-start, r.Duration)
		}

		slots = append(slots, &model.Slot{
			ID:              uuid.New(),
			ClassroomID:     r.ClassroomID,
			Day:             day,
			Date:            date,
			StartTime:       strings.TrimSpace(spec.StartTime),
			EndTime:         strings.TrimSpace(spec.EndTime),
			Duration:        r.Duration,
			ReviewStage:     stage,
			BookingDeadline: deadline,
			IsAvailable:     true,
			CreatedBy:       actorID,
		})
	}

	return slots, nil
}
