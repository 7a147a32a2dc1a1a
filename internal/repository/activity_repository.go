package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository пишет журнал активности
type ActivityRepository struct {
	*base.Repository
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{Repository: base.NewRepository(pool)}
}

// Create сохраняет событие в activity_logs
func (r *ActivityRepository) Create(ctx context.Context, activity *model.Activity) error {
	query := `
		INSERT INTO activity_logs (type, actor_id, classroom_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.ExecAffected(
		ctx, query,
		activity.Type,
		activity.ActorID,
		activity.ClassroomID,
		activity.Details,
		activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	return nil
}
