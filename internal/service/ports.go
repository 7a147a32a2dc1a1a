package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/google/uuid"
)

// SlotStore хранилище слотов
type SlotStore interface {
	CreateBatch(ctx context.Context, slots []*model.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	// Reserve условное обновление is_available true -> false, nil если не вышло
	Reserve(ctx context.Context, id uuid.UUID, today time.Time) (*model.Slot, error)
	Release(ctx context.Context, id uuid.UUID) (bool, error)
	Withdraw(ctx context.Context, id uuid.UUID) (bool, error)
	Reopen(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ListOpen(ctx context.Context, classroomID uuid.UUID, today time.Time) ([]*model.Slot, error)
	WithdrawExpired(ctx context.Context, today time.Time) (int64, error)
}

// BookingLedger хранилище броней
type BookingLedger interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	FindConfirmed(ctx context.Context, slotID, teamID uuid.UUID) (*model.Booking, error)
	ListBySlots(ctx context.Context, slotIDs []uuid.UUID) ([]*model.Booking, error)
	ListConfirmedByTeams(ctx context.Context, teamIDs []uuid.UUID) ([]*model.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteBySlot(ctx context.Context, slotID uuid.UUID) (int64, error)
}

// TxManager выполняет fn как одну атомарную операцию хранилища
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Authorizer проверки доступа (Access Policy Guard)
type Authorizer interface {
	VerifyClassroomOwnership(ctx context.Context, actor *model.User, classroomID uuid.UUID) (bool, error)
	VerifyClassroomMembership(ctx context.Context, actor *model.User, classroomID uuid.UUID) (bool, error)
	// TeamMembership возвращает nil, если пользователь не состоит в команде
	TeamMembership(ctx context.Context, actor *model.User, teamID uuid.UUID) (*model.TeamMembership, error)
	TeamsOf(ctx context.Context, actor *model.User, classroomID uuid.UUID) ([]model.TeamMembership, error)
}

// ActivityPublisher принимает события журнала. Publish не блокирует и не падает.
type ActivityPublisher interface {
	Publish(activity model.Activity)
}

// Recorder метрики сервиса
type Recorder interface {
	BookingAttempt(outcome string)
	SlotsPublished(count int)
	BookingCancelled()
	SlotDeleted(bookingsRemoved int64)
	SlotsWithdrawnExpired(count int64)
}

type nopRecorder struct{}

func (nopRecorder) BookingAttempt(string)       {}
func (nopRecorder) SlotsPublished(int)          {}
func (nopRecorder) BookingCancelled()           {}
func (nopRecorder) SlotDeleted(int64)           {}
func (nopRecorder) SlotsWithdrawnExpired(int64) {}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Activity) {}
