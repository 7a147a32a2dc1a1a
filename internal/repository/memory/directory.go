package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/google/uuid"
)

// AddUser добавляет профиль
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// AddClassroom добавляет класс и записывает в него студентов
func (s *Store) AddClassroom(c model.Classroom, studentIDs ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.classrooms[c.ID] = c
	if s.state.students[c.ID] == nil {
		s.state.students[c.ID] = make(map[uuid.UUID]struct{})
	}
	for _, id := range studentIDs {
		s.state.students[c.ID][id] = struct{}{}
	}
}

// AddTeam добавляет команду с участниками
func (s *Store) AddTeam(t model.Team, members map[uuid.UUID]model.MemberRole) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.teams[t.ID] = t
	s.state.members[t.ID] = make(map[uuid.UUID]model.MemberRole, len(members))
	for id, role := range members {
		s.state.members[t.ID][id] = role
	}
}

// Seed начальные данные справочников для STORE=memory
type Seed struct {
	Users      []model.User    `json:"users"`
	Classrooms []SeedClassroom `json:"classrooms"`
	Teams      []SeedTeam      `json:"teams"`
}

type SeedClassroom struct {
	model.Classroom
	Students []uuid.UUID `json:"students"`
}

type SeedTeam struct {
	model.Team
	Members map[uuid.UUID]model.MemberRole `json:"members"`
}

// LoadSeed читает JSON со справочниками
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for _, u := range seed.Users {
		s.AddUser(u)
	}
	for _, c := range seed.Classrooms {
		s.AddClassroom(c.Classroom, c.Students...)
	}
	for _, t := range seed.Teams {
		s.AddTeam(t.Team, t.Members)
	}

	return nil
}

// UserRepository профили в памяти
type UserRepository struct {
	store *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.store.lock(ctx)()

	u, ok := r.store.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// AccessRepository классы и команды в памяти
type AccessRepository struct {
	store *Store
}

func (r *AccessRepository) IsClassroomOwner(ctx context.Context, userID, classroomID uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	c, ok := r.store.state.classrooms[classroomID]
	return ok && c.FacultyID == userID, nil
}

func (r *AccessRepository) IsClassroomStudent(ctx context.Context, userID, classroomID uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	_, ok := r.store.state.students[classroomID][userID]
	return ok, nil
}

func (r *AccessRepository) GetMembership(ctx context.Context, userID, teamID uuid.UUID) (*model.TeamMembership, error) {
	defer r.store.lock(ctx)()

	team, ok := r.store.state.teams[teamID]
	if !ok {
		return nil, nil
	}
	role, ok := r.store.state.members[teamID][userID]
	if !ok {
		return nil, nil
	}

	return &model.TeamMembership{
		TeamID:      team.ID,
		TeamName:    team.Name,
		ClassroomID: team.ClassroomID,
		Role:        role,
	}, nil
}

func (r *AccessRepository) ListMemberships(ctx context.Context, userID, classroomID uuid.UUID) ([]model.TeamMembership, error) {
	defer r.store.lock(ctx)()

	var out []model.TeamMembership
	for teamID, members := range r.store.state.members {
		role, ok := members[userID]
		if !ok {
			continue
		}
		team := r.store.state.teams[teamID]
		if team.ClassroomID != classroomID {
			continue
		}
		out = append(out, model.TeamMembership{
			TeamID:      team.ID,
			TeamName:    team.Name,
			ClassroomID: team.ClassroomID,
			Role:        role,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TeamName < out[j].TeamName })
	return out, nil
}

// ActivityRepository журнал активности в памяти
type ActivityRepository struct {
	store *Store
}

func (r *ActivityRepository) Create(ctx context.Context, activity *model.Activity) error {
	defer r.store.lock(ctx)()

	r.store.state.activities = append(r.store.state.activities, *activity)
	return nil
}

// List возвращает копию журнала
func (r *ActivityRepository) List() []model.Activity {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	out := make([]model.Activity, len(r.store.state.activities))
	copy(out, r.store.state.activities)
	return out
}
