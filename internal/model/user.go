package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
)

// User профиль пользователя, от имени которого выполняется запрос
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Role        Role      `json:"role"`
	IsConfirmed bool      `json:"isConfirmed"` // подтверждён ли аккаунт
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) IsFaculty() bool {
	return u != nil && u.Role == RoleFaculty
}

// IsConfirmedStudent проверяет, что пользователь - подтверждённый студент
func (u *User) IsConfirmedStudent() bool {
	return u != nil && u.Role == RoleStudent && u.IsConfirmed
}
