// Package access проверки личности и прав доступа к классам и командам.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Profiles источник профилей пользователей
type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Classrooms источник данных о классах и командах
type Classrooms interface {
	IsClassroomOwner(ctx context.Context, userID, classroomID uuid.UUID) (bool, error)
	IsClassroomStudent(ctx context.Context, userID, classroomID uuid.UUID) (bool, error)
	GetMembership(ctx context.Context, userID, teamID uuid.UUID) (*model.TeamMembership, error)
	ListMemberships(ctx context.Context, userID, classroomID uuid.UUID) ([]model.TeamMembership, error)
}

type Guard struct {
	secret     []byte
	profiles   Profiles
	classrooms Classrooms
	leeway     time.Duration
}

func NewGuard(secret string, profiles Profiles, classrooms Classrooms) *Guard {
	return &Guard{
		secret:     []byte(secret),
		profiles:   profiles,
		classrooms: classrooms,
		leeway:     5 * time.Second,
	}
}

// VerifyActor проверяет Bearer-токен и загружает профиль по sub.
// Любая проблема с токеном или профилем даёт ErrUnauthenticated.
func (g *Guard) VerifyActor(r *http.Request) (*model.User, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, fmt.Errorf("%w: missing authorization", ErrUnauthenticated)
	}

	parts := strings.Fields(auth)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("%w: invalid authorization format", ErrUnauthenticated)
	}

	userID, err := g.parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := g.profiles.GetByID(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: profile not found", ErrUnauthenticated)
	}

	return user, nil
}

func (g *Guard) parse(raw string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(g.leeway),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}

	return userID, nil
}

// IssueToken подписывает токен для пользователя. Используется в тестах и утилитах.
func (g *Guard) IssueToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyClassroomOwnership true, если actor преподаватель и владелец класса
func (g *Guard) VerifyClassroomOwnership(ctx context.Context, actor *model.User, classroomID uuid.UUID) (bool, error) {
	if !actor.IsFaculty() {
		return false, nil
	}

	ok, err := g.classrooms.IsClassroomOwner(ctx, actor.ID, classroomID)
	if err != nil {
		return false, fmt.Errorf("check classroom owner: %w", err)
	}
	return ok, nil
}

// VerifyClassroomMembership владелец класса или записанный в него студент
func (g *Guard) VerifyClassroomMembership(ctx context.Context, actor *model.User, classroomID uuid.UUID) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.IsFaculty() {
		return g.VerifyClassroomOwnership(ctx, actor, classroomID)
	}

	ok, err := g.classrooms.IsClassroomStudent(ctx, actor.ID, classroomID)
	if err != nil {
		return false, fmt.Errorf("check classroom student: %w", err)
	}
	return ok, nil
}

func (g *Guard) TeamMembership(ctx context.Context, actor *model.User, teamID uuid.UUID) (*model.TeamMembership, error) {
	if actor == nil {
		return nil, nil
	}

	m, err := g.classrooms.GetMembership(ctx, actor.ID, teamID)
	if err != nil {
		return nil, fmt.Errorf("get team membership: %w", err)
	}
	return m, nil
}

// VerifyTeamLeadership true, если actor лидер команды
func (g *Guard) VerifyTeamLeadership(ctx context.Context, actor *model.User, teamID uuid.UUID) (bool, error) {
	m, err := g.TeamMembership(ctx, actor, teamID)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsLeader(), nil
}

func (g *Guard) TeamsOf(ctx context.Context, actor *model.User, classroomID uuid.UUID) ([]model.TeamMembership, error) {
	if actor == nil {
		return nil, nil
	}

	teams, err := g.classrooms.ListMemberships(ctx, actor.ID, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list team memberships: %w", err)
	}
	return teams, nil
}
