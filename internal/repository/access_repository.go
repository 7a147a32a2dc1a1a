package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessRepository читает классы, команды и членство в них.
// Эти таблицы ведёт другое приложение, здесь они только читаются.
type AccessRepository struct {
	*base.Repository
}

func NewAccessRepository(pool *pgxpool.Pool) *AccessRepository {
	return &AccessRepository{Repository: base.NewRepository(pool)}
}

// IsClassroomOwner проверяет, что преподаватель ведёт класс
func (r *AccessRepository) IsClassroomOwner(ctx context.Context, userID, classroomID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM classrooms
			WHERE id = $1 AND faculty_id = $2
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, classroomID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check classroom owner: %w", err)
	}

	return exists, nil
}

// IsClassroomStudent проверяет, что студент записан в класс
func (r *AccessRepository) IsClassroomStudent(ctx context.Context, userID, classroomID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM classroom_students
			WHERE classroom_id = $1 AND student_id = $2
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, classroomID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check classroom student: %w", err)
	}

	return exists, nil
}

// GetMembership получает членство пользователя в команде
func (r *AccessRepository) GetMembership(ctx context.Context, userID, teamID uuid.UUID) (*model.TeamMembership, error) {
	query := `
		SELECT t.id, t.name, t.classroom_id, tm.role
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.team_id = $1 AND tm.student_id = $2
	`

	var m model.TeamMembership
	err := r.QueryRow(ctx, query, teamID, userID).Scan(
		&m.TeamID,
		&m.TeamName,
		&m.ClassroomID,
		&m.Role,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get team membership: %w", err)
	}

	return &m, nil
}

// ListMemberships получает команды пользователя в классе
func (r *AccessRepository) ListMemberships(ctx context.Context, userID, classroomID uuid.UUID) ([]model.TeamMembership, error) {
	query := `
		SELECT t.id, t.name, t.classroom_id, tm.role
		FROM team_members tm
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.student_id = $1 AND t.classroom_id = $2
		ORDER BY t.name
	`

	rows, err := r.Query(ctx, query, userID, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list team memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.TeamMembership
	for rows.Next() {
		var m model.TeamMembership
		if err := rows.Scan(&m.TeamID, &m.TeamName, &m.ClassroomID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan team membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team memberships: %w", err)
	}

	return memberships, nil
}
