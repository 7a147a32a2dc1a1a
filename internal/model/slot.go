package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot окно для защиты проекта, опубликованное преподавателем
type Slot struct {
	ID              uuid.UUID `json:"id"`
	ClassroomID     uuid.UUID `json:"classroomId"`
	Day             string    `json:"day"`
	Date            time.Time `json:"date"`
	StartTime       string    `json:"startTime"` // HH:MM
	EndTime         string    `json:"endTime"`   // HH:MM
	Duration        int       `json:"duration"`  // минуты
	ReviewStage     string    `json:"reviewStage"`
	BookingDeadline time.Time `json:"bookingDeadline"`
	IsAvailable     bool      `json:"isAvailable"`
	IsWithdrawn     bool      `json:"isWithdrawn"` // снят преподавателем вручную
	CreatedBy       uuid.UUID `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BookableOn проверяет, можно ли забронировать слот в указанный день
func (s *Slot) BookableOn(today time.Time) bool {
	return s.IsAvailable && !s.IsWithdrawn && !s.BookingDeadline.Before(today)
}

// Expired возвращает true, если дедлайн бронирования уже прошёл
func (s *Slot) Expired(today time.Time) bool {
	return s.BookingDeadline.Before(today)
}
