package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, classroom_id, day, date, start_time, end_time, duration, review_stage,
	booking_deadline, is_available, is_withdrawn, created_by, created_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.ClassroomID,
		&slot.Day,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Duration,
		&slot.ReviewStage,
		&slot.BookingDeadline,
		&slot.IsAvailable,
		&slot.IsWithdrawn,
		&slot.CreatedBy,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// CreateBatch вставляет пачку слотов одним батчем.
// Вызывать внутри TxManager.Do, чтобы вставка была "всё или ничего".
func (r *SlotRepository) CreateBatch(ctx context.Context, slots []*model.Slot) error {
	query := `
		INSERT INTO slots (id, classroom_id, day, date, start_time, end_time, duration,
		                   review_stage, booking_deadline, is_available, is_withdrawn, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	batch := &pgx.Batch{}
	for _, slot := range slots {
		batch.Queue(query,
			slot.ID,
			slot.ClassroomID,
			slot.Day,
			slot.Date,
			slot.StartTime,
			slot.EndTime,
			slot.Duration,
			slot.ReviewStage,
			slot.BookingDeadline,
			slot.IsAvailable,
			slot.IsWithdrawn,
			slot.CreatedBy,
		)
	}

	results := r.Conn(ctx).SendBatch(ctx, batch)
	for i, slot := range slots {
		if err := results.QueryRow().Scan(&slot.CreatedAt); err != nil {
			results.Close()
			return fmt.Errorf("create slot %d: %w", i, err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("close slot batch: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// GetForUpdate читает слот с блокировкой строки до конца транзакции
func (r *SlotRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	return slot, nil
}

// Reserve атомарно занимает слот: is_available true -> false.
// Возвращает nil, если слот уже занят, снят или дедлайн прошёл.
func (r *SlotRepository) Reserve(ctx context.Context, id uuid.UUID, today time.Time) (*model.Slot, error) {
	query := `
		UPDATE slots
		SET is_available = false
		WHERE id = $1
		  AND is_available
		  AND NOT is_withdrawn
		  AND booking_deadline >= $2
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(ctx, query, id, today))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	return slot, nil
}

// Release освобождает слот после отмены брони, если его не снял преподаватель
func (r *SlotRepository) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE slots
		SET is_available = true
		WHERE id = $1 AND NOT is_withdrawn
	`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return affected > 0, nil
}

// Withdraw снимает слот с бронирования вручную
func (r *SlotRepository) Withdraw(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE slots
		SET is_withdrawn = true, is_available = false
		WHERE id = $1 AND NOT is_withdrawn
	`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("withdraw slot: %w", err)
	}

	return affected > 0, nil
}

// Reopen возвращает снятый слот. Доступным он становится, только если на нём нет брони.
func (r *SlotRepository) Reopen(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `
		UPDATE slots s
		SET is_withdrawn = false,
		    is_available = NOT EXISTS (
		        SELECT 1 FROM bookings b WHERE b.slot_id = s.id AND b.is_confirmed
		    )
		WHERE s.id = $1 AND s.is_withdrawn
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reopen slot: %w", err)
	}

	return slot, nil
}

// Delete удаляет слот
func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}

	return affected > 0, nil
}

// ListOpen получает доступные слоты класса с неистёкшим дедлайном
func (r *SlotRepository) ListOpen(ctx context.Context, classroomID uuid.UUID, today time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE classroom_id = $1
		  AND is_available
		  AND NOT is_withdrawn
		  AND booking_deadline >= $2
		ORDER BY date, start_time
	`

	rows, err := r.Query(ctx, query, classroomID, today)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// WithdrawExpired снимает свободные слоты с истёкшим дедлайном
func (r *SlotRepository) WithdrawExpired(ctx context.Context, today time.Time) (int64, error) {
	query := `
		UPDATE slots
		SET is_withdrawn = true, is_available = false
		WHERE is_available
		  AND NOT is_withdrawn
		  AND booking_deadline < $1
	`

	affected, err := r.ExecAffected(ctx, query, today)
	if err != nil {
		return 0, fmt.Errorf("withdraw expired slots: %w", err)
	}

	return affected, nil
}
