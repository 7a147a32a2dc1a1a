package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newSlot(classroomID uuid.UUID, stage, start string, deadline time.Time) *model.Slot {
	return &model.Slot{
		ID:              uuid.New(),
		ClassroomID:     classroomID,
		Day:             "Wednesday",
		Date:            time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		StartTime:       start,
		EndTime:         start,
		Duration:        30,
		ReviewStage:     stage,
		BookingDeadline: deadline,
		IsAvailable:     true,
	}
}

func confirmed(slot *model.Slot, teamID uuid.UUID) *model.Booking {
	return &model.Booking{
		ID:          uuid.New(),
		SlotID:      slot.ID,
		TeamID:      teamID,
		ReviewStage: slot.ReviewStage,
		IsConfirmed: true,
	}
}

func TestDo_RollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	slot := newSlot(uuid.New(), "review-1", "10:00", today)
	require.NoError(t, store.Slots().CreateBatch(ctx, []*model.Slot{slot}))

	boom := errors.New("boom")
	err := store.Do(ctx, func(ctx context.Context) error {
		reserved, err := store.Slots().Reserve(ctx, slot.ID, today)
		require.NoError(t, err)
		require.NotNil(t, reserved)

		require.NoError(t, store.Bookings().Create(ctx, confirmed(slot, uuid.New())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable, "reservation is rolled back")

	bookings, err := store.Bookings().ListBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestDo_CancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_Nested(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Do(ctx, func(ctx context.Context) error {
		return store.Do(ctx, func(ctx context.Context) error {
			return store.Slots().CreateBatch(ctx, []*model.Slot{newSlot(uuid.New(), "r", "10:00", today)})
		})
	})
	require.NoError(t, err)
}

func TestSlotRepository_Lifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	slots := store.Slots()
	classroom := uuid.New()

	open := newSlot(classroom, "review-1", "11:00", today)
	early := newSlot(classroom, "review-1", "10:00", today)
	expired := newSlot(classroom, "review-1", "12:00", today.AddDate(0, 0, -1))
	require.NoError(t, slots.CreateBatch(ctx, []*model.Slot{open, early, expired}))

	t.Run("duplicate id rejects whole batch", func(t *testing.T) {
		fresh := newSlot(classroom, "review-1", "13:00", today)
		err := slots.CreateBatch(ctx, []*model.Slot{fresh, open})
		require.Error(t, err)

		got, err := slots.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list open is ordered and skips expired", func(t *testing.T) {
		list, err := slots.ListOpen(ctx, classroom, today)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, early.ID, list[0].ID)
		assert.Equal(t, open.ID, list[1].ID)
	})

	t.Run("reserve is single shot", func(t *testing.T) {
		got, err := slots.Reserve(ctx, open.ID, today)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsAvailable)

		got, err = slots.Reserve(ctx, open.ID, today)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = slots.Reserve(ctx, expired.ID, today)
		require.NoError(t, err)
		assert.Nil(t, got, "deadline passed")
	})

	t.Run("withdraw blocks release", func(t *testing.T) {
		ok, err := slots.Withdraw(ctx, open.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = slots.Release(ctx, open.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		reopened, err := slots.Reopen(ctx, open.ID)
		require.NoError(t, err)
		require.NotNil(t, reopened)
		assert.True(t, reopened.IsAvailable)
	})

	t.Run("sweep withdraws expired slots once", func(t *testing.T) {
		n, err := slots.WithdrawExpired(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = slots.WithdrawExpired(ctx, today)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestBookingRepository_Constraints(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	classroom := uuid.New()
	first := newSlot(classroom, "review-1", "10:00", today)
	second := newSlot(classroom, "review-1", "10:30", today)
	other := newSlot(classroom, "review-2", "11:00", today)
	require.NoError(t, store.Slots().CreateBatch(ctx, []*model.Slot{first, second, other}))

	alpha, beta := uuid.New(), uuid.New()
	bookings := store.Bookings()

	booking := confirmed(first, alpha)
	require.NoError(t, bookings.Create(ctx, booking))
	assert.False(t, booking.CreatedAt.IsZero())

	assert.ErrorIs(t, bookings.Create(ctx, confirmed(first, beta)), repository.ErrSlotAlreadyBooked)
	assert.ErrorIs(t, bookings.Create(ctx, confirmed(second, alpha)), repository.ErrStageAlreadyBooked)
	require.NoError(t, bookings.Create(ctx, confirmed(other, alpha)))

	unconfirmed := confirmed(first, beta)
	unconfirmed.IsConfirmed = false
	require.NoError(t, bookings.Create(ctx, unconfirmed), "only confirmed bookings are unique")

	orphan := confirmed(first, beta)
	orphan.SlotID = uuid.New()
	assert.Error(t, bookings.Create(ctx, orphan))

	found, err := bookings.FindConfirmed(ctx, first.ID, alpha)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, booking.ID, found.ID)

	byTeam, err := bookings.ListConfirmedByTeams(ctx, []uuid.UUID{alpha})
	require.NoError(t, err)
	assert.Len(t, byTeam, 2)

	t.Run("delete slot cascades", func(t *testing.T) {
		ok, err := store.Slots().Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		left, err := bookings.ListBySlot(ctx, first.ID)
		require.NoError(t, err)
		assert.Empty(t, left)

		got, err := bookings.GetByID(ctx, booking.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		ok, err = store.Slots().Delete(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoadSeed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	faculty := uuid.New()
	student := uuid.New()
	classroom := uuid.New()
	team := uuid.New()

	seed := `{
		"users": [
			{"id": "` + faculty.String() + `", "email": "prof@example.com", "role": "faculty", "isConfirmed": true},
			{"id": "` + student.String() + `", "email": "lead@example.com", "role": "student", "isConfirmed": true}
		],
		"classrooms": [
			{"id": "` + classroom.String() + `", "name": "Databases", "facultyId": "` + faculty.String() + `", "students": ["` + student.String() + `"]}
		],
		"teams": [
			{"id": "` + team.String() + `", "classroomId": "` + classroom.String() + `", "name": "alpha", "members": {"` + student.String() + `": "leader"}}
		]
	}`
	require.NoError(t, store.LoadSeed(strings.NewReader(seed)))

	user, err := store.Users().GetByID(ctx, student)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsConfirmedStudent())

	owner, err := store.Access().IsClassroomOwner(ctx, faculty, classroom)
	require.NoError(t, err)
	assert.True(t, owner)

	enrolled, err := store.Access().IsClassroomStudent(ctx, student, classroom)
	require.NoError(t, err)
	assert.True(t, enrolled)

	membership, err := store.Access().GetMembership(ctx, student, team)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.True(t, membership.IsLeader())
	assert.Equal(t, classroom, membership.ClassroomID)

	assert.Error(t, store.LoadSeed(strings.NewReader("{")))
}
