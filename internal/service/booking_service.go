package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Исходы бронирования для метрик
const (
	OutcomeBooked         = "booked"
	OutcomeUnavailable    = "unavailable"
	OutcomeDuplicateStage = "duplicate_stage"
	OutcomeForbidden      = "forbidden"
	OutcomeNotFound       = "not_found"
	OutcomeError          = "error"
)

// Config настройки сервиса бронирования
type Config struct {
	Location        *time.Location   // зона, в которой считается "сегодня"
	MaxRetries      uint64           // повторы при сбоях сериализации
	RetryBackoff    time.Duration    // базовая задержка экспоненциального backoff
	FollowUpTimeout time.Duration    // таймаут проверочного чтения после обрыва
	Now             func() time.Time // для тестов
}

func (c *Config) applyDefaults() {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 20 * time.Millisecond
	}
	if c.FollowUpTimeout <= 0 {
		c.FollowUpTimeout = 3 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type BookingService struct {
	slots    SlotStore
	bookings BookingLedger
	tx       TxManager
	authz    Authorizer
	activity ActivityPublisher
	metrics  Recorder
	cfg      Config
	logger   *zap.Logger
}

func NewBookingService(
	slots SlotStore,
	bookings BookingLedger,
	tx TxManager,
	authz Authorizer,
	activity ActivityPublisher,
	metrics Recorder,
	cfg Config,
	logger *zap.Logger,
) *BookingService {
	cfg.applyDefaults()
	if activity == nil {
		activity = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BookingService{
		slots:    slots,
		bookings: bookings,
		tx:       tx,
		authz:    authz,
		activity: activity,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Today текущая календарная дата в зоне сервиса
func (s *BookingService) Today() time.Time {
	return model.DateOf(s.cfg.Now(), s.cfg.Location)
}

// PublishSlots публикует пачку слотов для класса. Вставка "всё или ничего".
func (s *BookingService) PublishSlots(ctx context.Context, req PublishRequest, actor *model.User) ([]*model.Slot, error) {
	if err := s.requireClassroomOwner(ctx, actor, req.ClassroomID); err != nil {
		return nil, err
	}

	slots, err := req.build(actor.ID)
	if err != nil {
		return nil, err
	}

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		return s.slots.CreateBatch(ctx, slots)
	})
	if err != nil {
		s.logger.Error("Failed to publish slots",
			zap.String("classroom_id", req.ClassroomID.String()),
			zap.Int("count", len(slots)),
			zap.Error(err),
		)
		return nil, storeFailure("publish slots", err)
	}

	s.metrics.SlotsPublished(len(slots))
	s.logger.Info("Slots published",
		zap.String("classroom_id", req.ClassroomID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int("count", len(slots)),
		zap.String("review_stage", req.ReviewStage),
	)

	s.activity.Publish(model.Activity{
		Type:        model.ActivitySlotsPublished,
		ActorID:     actor.ID,
		ClassroomID: req.ClassroomID,
		Details: map[string]any{
			"count":       len(slots),
			"reviewStage": req.ReviewStage,
			"duration":    req.Duration,
		},
		CreatedAt: s.cfg.Now(),
	})

	return slots, nil
}

// BookSlot бронирует слот для команды.
// Условное обновление слота и вставка брони идут одной транзакцией,
// поэтому из конкурирующих запросов на один слот выигрывает ровно один.
func (s *BookingService) BookSlot(ctx context.Context, slotID, teamID uuid.UUID, actor *model.User) (*model.Booking, error) {
	booking, err := s.bookSlot(ctx, slotID, teamID, actor)
	s.metrics.BookingAttempt(bookingOutcome(err))
	return booking, err
}

func (s *BookingService) bookSlot(ctx context.Context, slotID, teamID uuid.UUID, actor *model.User) (*model.Booking, error) {
	if slotID == uuid.Nil || teamID == uuid.Nil {
		return nil, invalidInput("slotId and teamId are required")
	}

	if !actor.IsConfirmedStudent() {
		return nil, forbidden("only confirmed students can book slots")
	}

	membership, err := s.authz.TeamMembership(ctx, actor, teamID)
	if err != nil {
		return nil, storeFailure("check team leadership", err)
	}
	if membership == nil || !membership.IsLeader() {
		return nil, forbidden("only the team leader can book a slot")
	}

	today := s.Today()
	var (
		booking  *model.Booking
		repeated bool
	)

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.tx.Do(ctx, func(ctx context.Context) error {
			booking, repeated = nil, false

			slot, err := s.slots.Reserve(ctx, slotID, today)
			if err != nil {
				return err
			}
			if slot == nil {
				existing, err := s.explainUnavailable(ctx, slotID, teamID, membership.ClassroomID, today)
				if err != nil {
					return err
				}
				booking, repeated = existing, true
				return nil
			}

			if slot.ClassroomID != membership.ClassroomID {
				return forbidden("team does not belong to the slot's classroom")
			}

			b := &model.Booking{
				ID:          uuid.New(),
				SlotID:      slot.ID,
				TeamID:      teamID,
				ReviewStage: slot.ReviewStage,
				IsConfirmed: true,
				CreatedBy:   actor.ID,
			}

			if err := s.bookings.Create(ctx, b); err != nil {
				switch {
				case errors.Is(err, repository.ErrStageAlreadyBooked):
					return newError(KindDuplicateStageBooking,
						fmt.Sprintf("team already booked a slot for %q", slot.ReviewStage))
				case errors.Is(err, repository.ErrSlotAlreadyBooked):
					return newError(KindSlotUnavailable, "slot is already booked")
				default:
					return err
				}
			}

			b.Slot = slot
			booking = b
			return nil
		})
	})

	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}

		if ctx.Err() != nil {
			// Запись могла успеть закоммититься: проверяем, а не считаем это отказом
			return s.resolveBooking(ctx, slotID, teamID, err)
		}

		s.logger.Error("Failed to book slot",
			zap.String("slot_id", slotID.String()),
			zap.String("team_id", teamID.String()),
			zap.Error(err),
		)
		return nil, storeFailure("book slot", err)
	}

	if repeated {
		// Повтор уже выполненного запроса: бронь та же, событие не шлём
		s.logger.Info("Booking already exists, returning it",
			zap.String("booking_id", booking.ID.String()),
			zap.String("slot_id", slotID.String()),
			zap.String("team_id", teamID.String()),
		)
		return booking, nil
	}

	s.logger.Info("Slot booked",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("team_id", teamID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("review_stage", booking.ReviewStage),
	)

	s.activity.Publish(model.Activity{
		Type:        model.ActivitySlotBooked,
		ActorID:     actor.ID,
		ClassroomID: booking.Slot.ClassroomID,
		Details: map[string]any{
			"teamId":      teamID.String(),
			"slotId":      slotID.String(),
			"reviewStage": booking.ReviewStage,
		},
		CreatedAt: s.cfg.Now(),
	})

	return booking, nil
}

// explainUnavailable выясняет, почему условное обновление не сработало.
// Если слот уже занят этой же командой, возвращает её бронь.
// Слот чужого класса даёт Forbidden без подробностей.
func (s *BookingService) explainUnavailable(ctx context.Context, slotID, teamID, classroomID uuid.UUID, today time.Time) (*model.Booking, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, notFound("slot not found")
	}
	if slot.ClassroomID != classroomID {
		return nil, forbidden("team does not belong to the slot's classroom")
	}

	existing, err := s.bookings.FindConfirmed(ctx, slotID, teamID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Slot = slot
		return existing, nil
	}

	switch {
	case slot.IsWithdrawn:
		return nil, newError(KindSlotUnavailable, "slot was withdrawn by the instructor")
	case slot.Expired(today):
		return nil, newError(KindSlotUnavailable, "booking deadline has passed")
	default:
		return nil, newError(KindSlotUnavailable, "slot is already booked")
	}
}

// resolveBooking проверочное чтение после таймаута или отмены запроса
func (s *BookingService) resolveBooking(ctx context.Context, slotID, teamID uuid.UUID, cause error) (*model.Booking, error) {
	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FollowUpTimeout)
	defer cancel()

	booking, err := s.bookings.FindConfirmed(readCtx, slotID, teamID)
	if err != nil {
		s.logger.Error("Booking outcome unknown",
			zap.String("slot_id", slotID.String()),
			zap.String("team_id", teamID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return nil, storeFailure("book slot", errors.Join(cause, err))
	}

	if booking == nil {
		s.logger.Warn("Booking interrupted before commit",
			zap.String("slot_id", slotID.String()),
			zap.String("team_id", teamID.String()),
			zap.Error(cause),
		)
		return nil, storeFailure("book slot", cause)
	}

	slot, err := s.slots.GetByID(readCtx, slotID)
	if err == nil {
		booking.Slot = slot
	}

	s.logger.Info("Booking committed despite interrupted request",
		zap.String("booking_id", booking.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("team_id", teamID.String()),
	)

	return booking, nil
}

// withRetry повторяет fn при сбоях сериализации и дедлоках
func (s *BookingService) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.RetryBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && repository.IsTransient(err) {
			s.logger.Warn("Transient store error, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

// GetBooking получает бронь, если пользователь имеет к ней отношение
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor *model.User) (*model.Booking, error) {
	booking, slot, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.requireBookingAccess(ctx, booking, slot, actor); err != nil {
		return nil, err
	}

	booking.Slot = slot
	return booking, nil
}

// CancelBooking отменяет бронь и освобождает слот, если его не сняли вручную
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor *model.User) error {
	if bookingID == uuid.Nil {
		return invalidInput("bookingId is required")
	}

	booking, slot, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.requireBookingAccess(ctx, booking, slot, actor); err != nil {
		return err
	}

	var released bool
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if _, err := s.slots.GetForUpdate(ctx, booking.SlotID); err != nil {
			return err
		}

		deleted, err := s.bookings.Delete(ctx, bookingID)
		if err != nil {
			return err
		}
		if !deleted {
			return notFound("booking not found")
		}

		if booking.IsConfirmed {
			released, err = s.slots.Release(ctx, booking.SlotID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		s.logger.Error("Failed to cancel booking",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return storeFailure("cancel booking", err)
	}

	s.metrics.BookingCancelled()
	s.logger.Info("Booking canceled",
		zap.String("booking_id", bookingID.String()),
		zap.String("slot_id", booking.SlotID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Bool("slot_released", released),
	)

	s.activity.Publish(model.Activity{
		Type:        model.ActivityBookingCancelled,
		ActorID:     actor.ID,
		ClassroomID: slot.ClassroomID,
		Details: map[string]any{
			"bookingId":    bookingID.String(),
			"slotId":       booking.SlotID.String(),
			"teamId":       booking.TeamID.String(),
			"slotReleased": released,
		},
		CreatedAt: s.cfg.Now(),
	})

	return nil
}

// DeleteSlot удаляет слот вместе со всеми бронями одной транзакцией
func (s *BookingService) DeleteSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) (int64, error) {
	slot, err := s.ownedSlot(ctx, slotID, actor)
	if err != nil {
		return 0, err
	}

	var removed int64
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		locked, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if locked == nil {
			return notFound("slot not found")
		}

		removed, err = s.bookings.DeleteBySlot(ctx, slotID)
		if err != nil {
			return err
		}

		deleted, err := s.slots.Delete(ctx, slotID)
		if err != nil {
			return err
		}
		if !deleted {
			return notFound("slot not found")
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return 0, svcErr
		}
		s.logger.Error("Failed to delete slot",
			zap.String("slot_id", slotID.String()),
			zap.Error(err),
		)
		return 0, storeFailure("delete slot", err)
	}

	s.metrics.SlotDeleted(removed)
	s.logger.Info("Slot deleted",
		zap.String("slot_id", slotID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int64("bookings_removed", removed),
	)

	s.activity.Publish(model.Activity{
		Type:        model.ActivitySlotDeleted,
		ActorID:     actor.ID,
		ClassroomID: slot.ClassroomID,
		Details: map[string]any{
			"slotId":          slotID.String(),
			"reviewStage":     slot.ReviewStage,
			"bookingsRemoved": removed,
		},
		CreatedAt: s.cfg.Now(),
	})

	return removed, nil
}

// WithdrawSlot снимает слот с бронирования. Существующая бронь остаётся.
func (s *BookingService) WithdrawSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) error {
	slot, err := s.ownedSlot(ctx, slotID, actor)
	if err != nil {
		return err
	}

	var changed bool
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		changed, err = s.slots.Withdraw(ctx, slotID)
		return err
	})
	if err != nil {
		return storeFailure("withdraw slot", err)
	}

	s.logger.Info("Slot withdrawn",
		zap.String("slot_id", slotID.String()),
		zap.Bool("changed", changed),
	)

	if changed {
		s.activity.Publish(model.Activity{
			Type:        model.ActivitySlotWithdrawn,
			ActorID:     actor.ID,
			ClassroomID: slot.ClassroomID,
			Details:     map[string]any{"slotId": slotID.String()},
			CreatedAt:   s.cfg.Now(),
		})
	}

	return nil
}

// ReopenSlot возвращает снятый слот. Доступным он станет, только если на нём нет брони.
func (s *BookingService) ReopenSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) (*model.Slot, error) {
	slot, err := s.ownedSlot(ctx, slotID, actor)
	if err != nil {
		return nil, err
	}

	var reopened *model.Slot
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		// Сначала блокировка строки: UPDATE после неё видит брони,
		// удалённые параллельной отменой, а не снимок до ожидания
		locked, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if locked == nil {
			return notFound("slot not found")
		}

		reopened, err = s.slots.Reopen(ctx, slotID)
		return err
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, storeFailure("reopen slot", err)
	}

	if reopened == nil {
		// Слот не был снят, возвращаем как есть
		return slot, nil
	}

	s.logger.Info("Slot reopened",
		zap.String("slot_id", slotID.String()),
		zap.Bool("available", reopened.IsAvailable),
	)

	s.activity.Publish(model.Activity{
		Type:        model.ActivitySlotReopened,
		ActorID:     actor.ID,
		ClassroomID: slot.ClassroomID,
		Details: map[string]any{
			"slotId":    slotID.String(),
			"available": reopened.IsAvailable,
		},
		CreatedAt: s.cfg.Now(),
	})

	return reopened, nil
}

// WithdrawExpired снимает свободные слоты с истёкшим дедлайном
func (s *BookingService) WithdrawExpired(ctx context.Context) (int64, error) {
	count, err := s.slots.WithdrawExpired(ctx, s.Today())
	if err != nil {
		return 0, storeFailure("withdraw expired slots", err)
	}

	if count > 0 {
		s.metrics.SlotsWithdrawnExpired(count)
		s.logger.Info("Expired slots withdrawn", zap.Int64("count", count))
	}
	return count, nil
}

func (s *BookingService) loadBooking(ctx context.Context, bookingID uuid.UUID) (*model.Booking, *model.Slot, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, storeFailure("get booking", err)
	}
	if booking == nil {
		return nil, nil, notFound("booking not found")
	}

	slot, err := s.slots.GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, nil, storeFailure("get slot", err)
	}
	if slot == nil {
		return nil, nil, notFound("booking not found")
	}

	return booking, slot, nil
}

// requireBookingAccess: автор брони, лидер её команды или преподаватель класса
func (s *BookingService) requireBookingAccess(ctx context.Context, booking *model.Booking, slot *model.Slot, actor *model.User) error {
	if actor == nil {
		return forbidden("authentication required")
	}
	if booking.CreatedBy == actor.ID {
		return nil
	}

	if actor.IsFaculty() {
		owner, err := s.authz.VerifyClassroomOwnership(ctx, actor, slot.ClassroomID)
		if err != nil {
			return storeFailure("check classroom ownership", err)
		}
		if owner {
			return nil
		}
		return forbidden("only the booking's team or the classroom instructor can manage it")
	}

	membership, err := s.authz.TeamMembership(ctx, actor, booking.TeamID)
	if err != nil {
		return storeFailure("check team leadership", err)
	}
	if membership != nil && membership.IsLeader() {
		return nil
	}

	return forbidden("only the booking's team or the classroom instructor can manage it")
}

func (s *BookingService) requireClassroomOwner(ctx context.Context, actor *model.User, classroomID uuid.UUID) error {
	if classroomID == uuid.Nil {
		return invalidInput("classroomId is required")
	}
	if !actor.IsFaculty() {
		return forbidden("only faculty can manage slots")
	}

	owner, err := s.authz.VerifyClassroomOwnership(ctx, actor, classroomID)
	if err != nil {
		return storeFailure("check classroom ownership", err)
	}
	if !owner {
		return forbidden("you do not own this classroom")
	}

	return nil
}

// ownedSlot загружает слот и проверяет, что пользователь ведёт его класс
func (s *BookingService) ownedSlot(ctx context.Context, slotID uuid.UUID, actor *model.User) (*model.Slot, error) {
	if slotID == uuid.Nil {
		return nil, invalidInput("slotId is required")
	}
	if !actor.IsFaculty() {
		return nil, forbidden("only faculty can manage slots")
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, storeFailure("get slot", err)
	}
	if slot == nil {
		return nil, notFound("slot not found")
	}

	if err := s.requireClassroomOwner(ctx, actor, slot.ClassroomID); err != nil {
		return nil, err
	}

	return slot, nil
}

func bookingOutcome(err error) string {
	if err == nil {
		return OutcomeBooked
	}
	switch KindOf(err) {
	case KindSlotUnavailable:
		return OutcomeUnavailable
	case KindDuplicateStageBooking:
		return OutcomeDuplicateStage
	case KindForbidden:
		return OutcomeForbidden
	case KindNotFound:
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
