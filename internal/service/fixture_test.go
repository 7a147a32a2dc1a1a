package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/access"
	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	svc       *service.BookingService
	events    *recordingPublisher
	faculty   *model.User
	classroom uuid.UUID
}

type team struct {
	id     uuid.UUID
	leader *model.User
	member *model.User
}

func newFixture(t *testing.T, opts ...func(*service.Config)) *fixture {
	t.Helper()

	store := memory.NewStore()
	faculty := &model.User{ID: uuid.New(), Email: "prof@example.com", Role: model.RoleFaculty, IsConfirmed: true}
	store.AddUser(*faculty)

	classroom := uuid.New()
	store.AddClassroom(model.Classroom{ID: classroom, Name: "Distributed Systems", FacultyID: faculty.ID})

	cfg := service.Config{
		Now:          func() time.Time { return testNow },
		RetryBackoff: time.Millisecond,
		MaxRetries:   2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	events := &recordingPublisher{}
	guard := access.NewGuard("secret", store.Users(), store.Access())
	svc := service.NewBookingService(
		store.Slots(), store.Bookings(), store, guard, events, nil, cfg, zap.NewNop(),
	)

	return &fixture{
		store:     store,
		svc:       svc,
		events:    events,
		faculty:   faculty,
		classroom: classroom,
	}
}

// addTeam заводит команду с подтверждённым лидером и обычным участником
func (f *fixture) addTeam(name string) team {
	leader := &model.User{ID: uuid.New(), Email: name + "-lead@example.com", Role: model.RoleStudent, IsConfirmed: true}
	member := &model.User{ID: uuid.New(), Email: name + "-member@example.com", Role: model.RoleStudent, IsConfirmed: true}
	f.store.AddUser(*leader)
	f.store.AddUser(*member)
	f.store.AddClassroom(model.Classroom{ID: f.classroom, Name: "Distributed Systems", FacultyID: f.faculty.ID}, leader.ID, member.ID)

	id := uuid.New()
	f.store.AddTeam(model.Team{ID: id, ClassroomID: f.classroom, Name: name}, map[uuid.UUID]model.MemberRole{
		leader.ID: model.MemberRoleLeader,
		member.ID: model.MemberRoleMember,
	})

	return team{id: id, leader: leader, member: member}
}

func (f *fixture) publishRequest(stage, deadline string, n int) service.PublishRequest {
	req := service.PublishRequest{
		ClassroomID:     f.classroom,
		Duration:        30,
		ReviewStage:     stage,
		BookingDeadline: deadline,
	}
	for i := 0; i < n; i++ {
		start := 10*60 + i*30
		req.Slots = append(req.Slots, service.SlotSpec{
			Day:       "Wednesday",
			Date:      "2025-03-12",
			StartTime: fmt.Sprintf("%02d:%02d", start/60, start%60),
			EndTime:   fmt.Sprintf("%02d:%02d", (start+30)/60, (start+30)%60),
		})
	}
	return req
}

func (f *fixture) publish(t *testing.T, stage, deadline string, n int) []*model.Slot {
	t.Helper()

	slots, err := f.svc.PublishSlots(context.Background(), f.publishRequest(stage, deadline, n), f.faculty)
	require.NoError(t, err)
	require.Len(t, slots, n)
	return slots
}

func (f *fixture) slot(t *testing.T, id uuid.UUID) *model.Slot {
	t.Helper()

	slot, err := f.store.Slots().GetByID(context.Background(), id)
	require.NoError(t, err)
	return slot
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Activity
}

func (p *recordingPublisher) Publish(a model.Activity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, a)
}

func (p *recordingPublisher) types() []model.ActivityType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.ActivityType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
