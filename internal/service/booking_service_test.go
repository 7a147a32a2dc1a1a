package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stageOne = "review-1"
	farAway  = "2099-01-01"
)

func TestPublishSlots(t *testing.T) {
	t.Run("creates all slots available", func(t *testing.T) {
		f := newFixture(t)

		slots := f.publish(t, stageOne, farAway, 3)

		for _, s := range slots {
			stored := f.slot(t, s.ID)
			require.NotNil(t, stored)
			assert.True(t, stored.IsAvailable)
			assert.False(t, stored.IsWithdrawn)
			assert.Equal(t, stageOne, stored.ReviewStage)
			assert.Equal(t, f.faculty.ID, stored.CreatedBy)
		}
		assert.Equal(t, []model.ActivityType{model.ActivitySlotsPublished}, f.events.types())
	})

	t.Run("rejects the whole batch when one row is invalid", func(t *testing.T) {
		f := newFixture(t)
		req := f.publishRequest(stageOne, farAway, 3)
		req.Slots[2].EndTime = "25:99"

		_, err := f.svc.PublishSlots(context.Background(), req, f.faculty)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
		assert.Contains(t, service.MessageOf(err), "slot 3")

		open, err := f.store.Slots().ListOpen(context.Background(), f.classroom, f.svc.Today())
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("rejects length that does not match duration", func(t *testing.T) {
		f := newFixture(t)
		req := f.publishRequest(stageOne, farAway, 1)
		req.Duration = 45

		_, err := f.svc.PublishSlots(context.Background(), req, f.faculty)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		f := newFixture(t)

		cases := map[string]func(*service.PublishRequest){
			"no slots":     func(r *service.PublishRequest) { r.Slots = nil },
			"no stage":     func(r *service.PublishRequest) { r.ReviewStage = "  " },
			"bad deadline": func(r *service.PublishRequest) { r.BookingDeadline = "01/01/2099" },
			"bad date":     func(r *service.PublishRequest) { r.Slots[0].Date = "tomorrow" },
			"no day":       func(r *service.PublishRequest) { r.Slots[0].Day = "" },
			"zero length":  func(r *service.PublishRequest) { r.Duration = 0 },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				req := f.publishRequest(stageOne, farAway, 1)
				mutate(&req)

				_, err := f.svc.PublishSlots(context.Background(), req, f.faculty)
				assert.ErrorIs(t, err, service.ErrInvalidInput)
			})
		}
	})

	t.Run("only the owning faculty can publish", func(t *testing.T) {
		f := newFixture(t)
		tm := f.addTeam("alpha")

		_, err := f.svc.PublishSlots(context.Background(), f.publishRequest(stageOne, farAway, 1), tm.leader)
		assert.ErrorIs(t, err, service.ErrForbidden)

		other := &model.User{ID: uuid.New(), Role: model.RoleFaculty, IsConfirmed: true}
		f.store.AddUser(*other)
		_, err = f.svc.PublishSlots(context.Background(), f.publishRequest(stageOne, farAway, 1), other)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestBookSlot_MutualExclusion(t *testing.T) {
	for _, n := range []int{1, 2, 16, 64} {
		t.Run(fmt.Sprintf("%d concurrent teams", n), func(t *testing.T) {
			f := newFixture(t)
			slot := f.publish(t, stageOne, farAway, 1)[0]

			teams := make([]team, n)
			for i := range teams {
				teams[i] = f.addTeam(fmt.Sprintf("team-%d", i))
			}

			var (
				wg          sync.WaitGroup
				mu          sync.Mutex
				successes   int
				unavailable int
				start       = make(chan struct{})
			)

			for _, tm := range teams {
				wg.Add(1)
				go func(tm team) {
					defer wg.Done()
					<-start

					_, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)

					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, service.ErrSlotUnavailable):
						unavailable++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(tm)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, n-1, unavailable)

			bookings, err := f.store.Bookings().ListBySlot(context.Background(), slot.ID)
			require.NoError(t, err)
			assert.Len(t, bookings, 1)
			assert.False(t, f.slot(t, slot.ID).IsAvailable)
		})
	}
}

func TestBookSlot_StageUniqueness(t *testing.T) {
	t.Run("sequential booking of another slot in the same stage", func(t *testing.T) {
		f := newFixture(t)
		slots := f.publish(t, stageOne, farAway, 3)
		tm := f.addTeam("alpha")

		_, err := f.svc.BookSlot(context.Background(), slots[0].ID, tm.id, tm.leader)
		require.NoError(t, err)

		for _, s := range slots[1:] {
			_, err := f.svc.BookSlot(context.Background(), s.ID, tm.id, tm.leader)
			assert.ErrorIs(t, err, service.ErrDuplicateStageBooking)
			assert.True(t, f.slot(t, s.ID).IsAvailable, "failed booking must not hold the slot")
		}
	})

	t.Run("concurrent bookings of different slots in the same stage", func(t *testing.T) {
		f := newFixture(t)
		slots := f.publish(t, stageOne, farAway, 8)
		tm := f.addTeam("alpha")

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for _, s := range slots {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := f.svc.BookSlot(context.Background(), id, tm.id, tm.leader)
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, service.ErrDuplicateStageBooking)
			}(s.ID)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)

		open, err := f.store.Slots().ListOpen(context.Background(), f.classroom, f.svc.Today())
		require.NoError(t, err)
		assert.Len(t, open, len(slots)-1)
	})

	t.Run("different stages are independent", func(t *testing.T) {
		f := newFixture(t)
		first := f.publish(t, stageOne, farAway, 1)[0]
		second := f.publish(t, "review-2", farAway, 1)[0]
		tm := f.addTeam("alpha")

		_, err := f.svc.BookSlot(context.Background(), first.ID, tm.id, tm.leader)
		require.NoError(t, err)
		_, err = f.svc.BookSlot(context.Background(), second.ID, tm.id, tm.leader)
		require.NoError(t, err)
	})
}

func TestBookSlot_Deadline(t *testing.T) {
	f := newFixture(t)
	tm := f.addTeam("alpha")

	expired := f.publish(t, stageOne, "2025-03-09", 1)[0]
	lastDay := f.publish(t, "review-2", "2025-03-10", 1)[0]

	_, err := f.svc.BookSlot(context.Background(), expired.ID, tm.id, tm.leader)
	assert.ErrorIs(t, err, service.ErrSlotUnavailable)
	assert.Equal(t, "booking deadline has passed", service.MessageOf(err))
	assert.True(t, f.slot(t, expired.ID).IsAvailable)

	_, err = f.svc.BookSlot(context.Background(), lastDay.ID, tm.id, tm.leader)
	assert.NoError(t, err, "deadline day itself is still bookable")
}

func TestBookSlot_Authorization(t *testing.T) {
	f := newFixture(t)
	slot := f.publish(t, stageOne, farAway, 1)[0]
	tm := f.addTeam("alpha")

	t.Run("plain member cannot book", func(t *testing.T) {
		_, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.member)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("unconfirmed leader cannot book", func(t *testing.T) {
		unconfirmed := *tm.leader
		unconfirmed.IsConfirmed = false
		_, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, &unconfirmed)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("faculty cannot book", func(t *testing.T) {
		_, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, f.faculty)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("team from another classroom cannot book", func(t *testing.T) {
		foreignClassroom := uuid.New()
		f.store.AddClassroom(model.Classroom{ID: foreignClassroom, FacultyID: f.faculty.ID})
		foreign := uuid.New()
		f.store.AddTeam(model.Team{ID: foreign, ClassroomID: foreignClassroom, Name: "foreign"},
			map[uuid.UUID]model.MemberRole{tm.leader.ID: model.MemberRoleLeader})

		_, err := f.svc.BookSlot(context.Background(), slot.ID, foreign, tm.leader)
		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.True(t, f.slot(t, slot.ID).IsAvailable, "rejected booking must roll back the reservation")
	})

	t.Run("missing ids", func(t *testing.T) {
		_, err := f.svc.BookSlot(context.Background(), uuid.Nil, tm.id, tm.leader)
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown slot", func(t *testing.T) {
		_, err := f.svc.BookSlot(context.Background(), uuid.New(), tm.id, tm.leader)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestDeleteSlot_Cascade(t *testing.T) {
	f := newFixture(t)
	slot := f.publish(t, stageOne, farAway, 1)[0]
	tm := f.addTeam("alpha")

	booking, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
	require.NoError(t, err)

	t.Run("student cannot delete", func(t *testing.T) {
		_, err := f.svc.DeleteSlot(context.Background(), slot.ID, tm.leader)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	removed, err := f.svc.DeleteSlot(context.Background(), slot.ID, f.faculty)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.Nil(t, f.slot(t, slot.ID))
	bookings, err := f.store.Bookings().ListBySlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = f.svc.GetBooking(context.Background(), booking.ID, tm.leader)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.DeleteSlot(context.Background(), slot.ID, f.faculty)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCancelBooking(t *testing.T) {
	t.Run("restores availability", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, stageOne, farAway, 1)[0]
		tm := f.addTeam("alpha")

		booking, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
		require.NoError(t, err)
		require.False(t, f.slot(t, slot.ID).IsAvailable)

		require.NoError(t, f.svc.CancelBooking(context.Background(), booking.ID, tm.leader))

		assert.True(t, f.slot(t, slot.ID).IsAvailable)
		got, err := f.store.Bookings().GetByID(context.Background(), booking.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		// Этап снова свободен для команды
		_, err = f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
		assert.NoError(t, err)
	})

	t.Run("withdrawn slot stays withdrawn", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, stageOne, farAway, 1)[0]
		tm := f.addTeam("alpha")

		booking, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
		require.NoError(t, err)
		require.NoError(t, f.svc.WithdrawSlot(context.Background(), slot.ID, f.faculty))

		require.NoError(t, f.svc.CancelBooking(context.Background(), booking.ID, f.faculty))

		stored := f.slot(t, slot.ID)
		assert.False(t, stored.IsAvailable)
		assert.True(t, stored.IsWithdrawn)
	})

	t.Run("outsiders are forbidden", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, stageOne, farAway, 1)[0]
		owner := f.addTeam("alpha")
		other := f.addTeam("beta")

		booking, err := f.svc.BookSlot(context.Background(), slot.ID, owner.id, owner.leader)
		require.NoError(t, err)

		err = f.svc.CancelBooking(context.Background(), booking.ID, other.leader)
		assert.ErrorIs(t, err, service.ErrForbidden)
		err = f.svc.CancelBooking(context.Background(), booking.ID, owner.member)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.CancelBooking(context.Background(), uuid.New(), f.faculty)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestWithdrawAndReopen(t *testing.T) {
	f := newFixture(t)
	slots := f.publish(t, stageOne, farAway, 2)
	tm := f.addTeam("alpha")

	_, err := f.svc.BookSlot(context.Background(), slots[0].ID, tm.id, tm.leader)
	require.NoError(t, err)

	for _, s := range slots {
		require.NoError(t, f.svc.WithdrawSlot(context.Background(), s.ID, f.faculty))
	}

	other := f.addTeam("beta")
	_, err = f.svc.BookSlot(context.Background(), slots[1].ID, other.id, other.leader)
	assert.ErrorIs(t, err, service.ErrSlotUnavailable)
	assert.Equal(t, "slot was withdrawn by the instructor", service.MessageOf(err))

	booked, err := f.svc.ReopenSlot(context.Background(), slots[0].ID, f.faculty)
	require.NoError(t, err)
	assert.False(t, booked.IsWithdrawn)
	assert.False(t, booked.IsAvailable, "a slot with a confirmed booking stays taken")

	free, err := f.svc.ReopenSlot(context.Background(), slots[1].ID, f.faculty)
	require.NoError(t, err)
	assert.True(t, free.IsAvailable)

	_, err = f.svc.BookSlot(context.Background(), slots[1].ID, other.id, other.leader)
	assert.NoError(t, err)
}

func TestWithdrawExpired(t *testing.T) {
	f := newFixture(t)
	expired := f.publish(t, stageOne, "2025-03-01", 2)
	open := f.publish(t, "review-2", farAway, 1)

	count, err := f.svc.WithdrawExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, s := range expired {
		assert.True(t, f.slot(t, s.ID).IsWithdrawn)
	}
	assert.True(t, f.slot(t, open[0].ID).IsAvailable)

	count, err = f.svc.WithdrawExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// Слоты 1..3 одного этапа, команда 42 бронирует слот 2, команда 99 опаздывает,
// преподаватель удаляет слот 2 вместе с бронью.
func TestBookingScenario(t *testing.T) {
	f := newFixture(t)
	slots := f.publish(t, stageOne, farAway, 3)
	team42 := f.addTeam("team-42")
	team99 := f.addTeam("team-99")

	booking, err := f.svc.BookSlot(context.Background(), slots[1].ID, team42.id, team42.leader)
	require.NoError(t, err)
	assert.False(t, f.slot(t, slots[1].ID).IsAvailable)
	assert.Equal(t, stageOne, booking.ReviewStage)
	assert.True(t, booking.IsConfirmed)

	_, err = f.svc.BookSlot(context.Background(), slots[2].ID, team42.id, team42.leader)
	assert.ErrorIs(t, err, service.ErrDuplicateStageBooking)

	_, err = f.svc.BookSlot(context.Background(), slots[1].ID, team99.id, team99.leader)
	assert.ErrorIs(t, err, service.ErrSlotUnavailable)

	_, err = f.svc.DeleteSlot(context.Background(), slots[1].ID, f.faculty)
	require.NoError(t, err)

	got, err := f.store.Bookings().GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, []model.ActivityType{
		model.ActivitySlotsPublished,
		model.ActivitySlotBooked,
		model.ActivitySlotDeleted,
	}, f.events.types())
}

func TestBookSlot_RepeatedRequest(t *testing.T) {
	f := newFixture(t)
	slot := f.publish(t, stageOne, farAway, 1)[0]
	tm := f.addTeam("alpha")

	first, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
	require.NoError(t, err)

	again, err := f.svc.BookSlot(context.Background(), slot.ID, tm.id, tm.leader)
	require.NoError(t, err, "repeating a successful request returns the same booking")
	assert.Equal(t, first.ID, again.ID)
	require.NotNil(t, again.Slot)
	assert.Equal(t, slot.ID, again.Slot.ID)

	bookings, err := f.store.Bookings().ListBySlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	booked := 0
	for _, typ := range f.events.types() {
		if typ == model.ActivitySlotBooked {
			booked++
		}
	}
	assert.Equal(t, 1, booked, "the repeat does not emit another event")

	t.Run("another team still gets slot unavailable", func(t *testing.T) {
		other := f.addTeam("beta")
		_, err := f.svc.BookSlot(context.Background(), slot.ID, other.id, other.leader)
		assert.ErrorIs(t, err, service.ErrSlotUnavailable)
	})
}

func TestBookSlot_ForeignClassroomLearnsNothing(t *testing.T) {
	f := newFixture(t)
	slots := f.publish(t, stageOne, farAway, 2)
	expired := f.publish(t, "review-0", "2025-01-01", 1)[0]

	owner := f.addTeam("alpha")
	_, err := f.svc.BookSlot(context.Background(), slots[0].ID, owner.id, owner.leader)
	require.NoError(t, err)
	require.NoError(t, f.svc.WithdrawSlot(context.Background(), slots[1].ID, f.faculty))

	foreignClassroom := uuid.New()
	f.store.AddClassroom(model.Classroom{ID: foreignClassroom, FacultyID: f.faculty.ID})
	outsider := f.addTeam("outsider")
	foreign := uuid.New()
	f.store.AddTeam(model.Team{ID: foreign, ClassroomID: foreignClassroom, Name: "foreign"},
		map[uuid.UUID]model.MemberRole{outsider.leader.ID: model.MemberRoleLeader})

	for name, slotID := range map[string]uuid.UUID{
		"booked":    slots[0].ID,
		"withdrawn": slots[1].ID,
		"expired":   expired.ID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.BookSlot(context.Background(), slotID, foreign, outsider.leader)
			assert.ErrorIs(t, err, service.ErrForbidden)
			assert.Equal(t, "team does not belong to the slot's classroom", service.MessageOf(err))
		})
	}
}
