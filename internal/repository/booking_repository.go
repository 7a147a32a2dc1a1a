package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, slot_id, team_id, review_stage, is_confirmed, created_by, created_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.SlotID,
		&booking.TeamID,
		&booking.ReviewStage,
		&booking.IsConfirmed,
		&booking.CreatedBy,
		&booking.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// Create создаёт новое бронирование.
// Уникальные индексы по слоту и по (команда, этап) отсекают двойные брони.
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (id, slot_id, team_id, review_stage, is_confirmed, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.ID,
		booking.SlotID,
		booking.TeamID,
		booking.ReviewStage,
		booking.IsConfirmed,
		booking.CreatedBy,
	).Scan(&booking.CreatedAt)

	switch {
	case err == nil:
		return nil
	case base.IsUniqueViolation(err, constraintConfirmedTeamStage):
		return ErrStageAlreadyBooked
	case base.IsUniqueViolation(err, constraintConfirmedSlot):
		return ErrSlotAlreadyBooked
	default:
		return fmt.Errorf("create booking: %w", err)
	}
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// FindConfirmed ищет подтверждённую бронь команды на конкретный слот
func (r *BookingRepository) FindConfirmed(ctx context.Context, slotID, teamID uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE slot_id = $1 AND team_id = $2 AND is_confirmed
	`

	booking, err := scanBooking(r.QueryRow(ctx, query, slotID, teamID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find confirmed booking: %w", err)
	}

	return booking, nil
}

// ListBySlots получает все брони для набора слотов
func (r *BookingRepository) ListBySlots(ctx context.Context, slotIDs []uuid.UUID) ([]*model.Booking, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE slot_id = ANY($1::uuid[])
		ORDER BY created_at
	`

	bookings, err := r.queryBookings(ctx, query, uuidStrings(slotIDs))
	if err != nil {
		return nil, fmt.Errorf("list bookings by slots: %w", err)
	}

	return bookings, nil
}

// ListConfirmedByTeams получает подтверждённые брони команд
func (r *BookingRepository) ListConfirmedByTeams(ctx context.Context, teamIDs []uuid.UUID) ([]*model.Booking, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE team_id = ANY($1::uuid[]) AND is_confirmed
		ORDER BY created_at
	`

	bookings, err := r.queryBookings(ctx, query, uuidStrings(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("list bookings by teams: %w", err)
	}

	return bookings, nil
}

// Delete удаляет бронирование
func (r *BookingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}

	return affected > 0, nil
}

// DeleteBySlot удаляет все брони слота
func (r *BookingRepository) DeleteBySlot(ctx context.Context, slotID uuid.UUID) (int64, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM bookings WHERE slot_id = $1`, slotID)
	if err != nil {
		return 0, fmt.Errorf("delete bookings by slot: %w", err)
	}

	return affected, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
