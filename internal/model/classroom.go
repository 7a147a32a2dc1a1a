package model

import "github.com/google/uuid"

type Classroom struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	FacultyID uuid.UUID `json:"facultyId"`
}

type MemberRole string

// Роли участника команды
const (
	MemberRoleLeader MemberRole = "leader"
	MemberRoleMember MemberRole = "member"
)

type Team struct {
	ID          uuid.UUID `json:"id"`
	ClassroomID uuid.UUID `json:"classroomId"`
	Name        string    `json:"name"`
}

// TeamMembership членство пользователя в команде
type TeamMembership struct {
	TeamID      uuid.UUID  `json:"teamId"`
	TeamName    string     `json:"teamName"`
	ClassroomID uuid.UUID  `json:"classroomId"`
	Role        MemberRole `json:"role"`
}

func (m TeamMembership) IsLeader() bool {
	return m.Role == MemberRoleLeader
}
