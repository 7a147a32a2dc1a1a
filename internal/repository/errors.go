package repository

import (
	"errors"

	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
)

// Ошибки хранилища, которые сервис превращает в бизнес-ошибки
var (
	ErrSlotAlreadyBooked  = errors.New("slot already has a confirmed booking")
	ErrStageAlreadyBooked = errors.New("team already has a confirmed booking for this review stage")
)

// Имена ограничений из миграций
const (
	constraintConfirmedSlot      = "bookings_confirmed_slot_key"
	constraintConfirmedTeamStage = "bookings_confirmed_team_stage_key"
)

// IsTransient проверяет, что ошибку хранилища можно повторить (сериализация, дедлок)
func IsTransient(err error) bool {
	return base.IsRetryable(err)
}
