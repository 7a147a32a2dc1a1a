// Package memory хранилище в памяти с той же атомарной семантикой, что и PostgreSQL.
// Используется в тестах и при STORE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/review_scheduler/internal/model"
	"github.com/Freeeeeet/review_scheduler/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	slots      map[uuid.UUID]model.Slot
	bookings   map[uuid.UUID]model.Booking
	users      map[uuid.UUID]model.User
	classrooms map[uuid.UUID]model.Classroom
	students   map[uuid.UUID]map[uuid.UUID]struct{} // classroom -> students
	teams      map[uuid.UUID]model.Team
	members    map[uuid.UUID]map[uuid.UUID]model.MemberRole // team -> student -> role
	activities []model.Activity
}

func newState() state {
	return state{
		slots:      make(map[uuid.UUID]model.Slot),
		bookings:   make(map[uuid.UUID]model.Booking),
		users:      make(map[uuid.UUID]model.User),
		classrooms: make(map[uuid.UUID]model.Classroom),
		students:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		teams:      make(map[uuid.UUID]model.Team),
		members:    make(map[uuid.UUID]map[uuid.UUID]model.MemberRole),
	}
}

// clone копирует только то, что меняется в транзакциях
func (s state) clone() state {
	c := s
	c.slots = make(map[uuid.UUID]model.Slot, len(s.slots))
	for k, v := range s.slots {
		c.slots[k] = v
	}
	c.bookings = make(map[uuid.UUID]model.Booking, len(s.bookings))
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

type txKey struct{}

// Store хранилище в памяти. Транзакции сериализуются одним мьютексом.
type Store struct {
	mu    sync.Mutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// lock берёт мьютекс, если вызов не внутри транзакции
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// Do выполняет fn атомарно: при ошибке состояние откатывается
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.state = snapshot
		return err
	}

	return nil
}

func (s *Store) Slots() *SlotRepository {
	return &SlotRepository{store: s}
}

func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{store: s}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) Access() *AccessRepository {
	return &AccessRepository{store: s}
}

func (s *Store) Activities() *ActivityRepository {
	return &ActivityRepository{store: s}
}

// SlotRepository слоты в памяти
type SlotRepository struct {
	store *Store
}

func (r *SlotRepository) CreateBatch(ctx context.Context, slots []*model.Slot) error {
	defer r.store.lock(ctx)()

	now := time.Now().UTC()
	for i, slot := range slots {
		if _, exists := r.store.state.slots[slot.ID]; exists {
			return fmt.Errorf("create slot %d: duplicate id %s", i, slot.ID)
		}
	}
	for _, slot := range slots {
		slot.CreatedAt = now
		r.store.state.slots[slot.ID] = *slot
	}

	return nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	defer r.store.lock(ctx)()

	slot, ok := r.store.state.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

// GetForUpdate в памяти равен GetByID: транзакция и так держит мьютекс
func (r *SlotRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *SlotRepository) Reserve(ctx context.Context, id uuid.UUID, today time.Time) (*model.Slot, error) {
	defer r.store.lock(ctx)()

	slot, ok := r.store.state.slots[id]
	if !ok || !slot.BookableOn(today) {
		return nil, nil
	}

	slot.IsAvailable = false
	r.store.state.slots[id] = slot
	return &slot, nil
}

func (r *SlotRepository) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	slot, ok := r.store.state.slots[id]
	if !ok || slot.IsWithdrawn {
		return false, nil
	}

	slot.IsAvailable = true
	r.store.state.slots[id] = slot
	return true, nil
}

func (r *SlotRepository) Withdraw(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	slot, ok := r.store.state.slots[id]
	if !ok || slot.IsWithdrawn {
		return false, nil
	}

	slot.IsWithdrawn = true
	slot.IsAvailable = false
	r.store.state.slots[id] = slot
	return true, nil
}

func (r *SlotRepository) Reopen(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	defer r.store.lock(ctx)()

	slot, ok := r.store.state.slots[id]
	if !ok || !slot.IsWithdrawn {
		return nil, nil
	}

	booked := false
	for _, b := range r.store.state.bookings {
		if b.SlotID == id && b.IsConfirmed {
			booked = true
			break
		}
	}

	slot.IsWithdrawn = false
	slot.IsAvailable = !booked
	r.store.state.slots[id] = slot
	return &slot, nil
}

// Delete удаляет слот и, как ON DELETE CASCADE, его брони
func (r *SlotRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	if _, ok := r.store.state.slots[id]; !ok {
		return false, nil
	}

	delete(r.store.state.slots, id)
	for bid, b := range r.store.state.bookings {
		if b.SlotID == id {
			delete(r.store.state.bookings, bid)
		}
	}
	return true, nil
}

func (r *SlotRepository) ListOpen(ctx context.Context, classroomID uuid.UUID, today time.Time) ([]*model.Slot, error) {
	defer r.store.lock(ctx)()

	var slots []*model.Slot
	for _, slot := range r.store.state.slots {
		if slot.ClassroomID == classroomID && slot.BookableOn(today) {
			s := slot
			slots = append(slots, &s)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})

	return slots, nil
}

func (r *SlotRepository) WithdrawExpired(ctx context.Context, today time.Time) (int64, error) {
	defer r.store.lock(ctx)()

	var count int64
	for id, slot := range r.store.state.slots {
		if slot.IsAvailable && !slot.IsWithdrawn && slot.Expired(today) {
			slot.IsAvailable = false
			slot.IsWithdrawn = true
			r.store.state.slots[id] = slot
			count++
		}
	}
	return count, nil
}

// BookingRepository брони в памяти
type BookingRepository struct {
	store *Store
}

// Create проверяет те же ограничения, что и уникальные индексы в PostgreSQL
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.state.slots[booking.SlotID]; !ok {
		return fmt.Errorf("create booking: slot %s does not exist", booking.SlotID)
	}

	if booking.IsConfirmed {
		for _, b := range r.store.state.bookings {
			if !b.IsConfirmed {
				continue
			}
			if b.TeamID == booking.TeamID && b.ReviewStage == booking.ReviewStage {
				return repository.ErrStageAlreadyBooked
			}
			if b.SlotID == booking.SlotID {
				return repository.ErrSlotAlreadyBooked
			}
		}
	}

	booking.CreatedAt = time.Now().UTC()
	stored := *booking
	stored.Slot = nil
	r.store.state.bookings[booking.ID] = stored
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	defer r.store.lock(ctx)()

	b, ok := r.store.state.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepository) FindConfirmed(ctx context.Context, slotID, teamID uuid.UUID) (*model.Booking, error) {
	defer r.store.lock(ctx)()

	for _, b := range r.store.state.bookings {
		if b.SlotID == slotID && b.TeamID == teamID && b.IsConfirmed {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *BookingRepository) ListBySlots(ctx context.Context, slotIDs []uuid.UUID) ([]*model.Booking, error) {
	defer r.store.lock(ctx)()

	wanted := make(map[uuid.UUID]struct{}, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = struct{}{}
	}

	return r.filter(func(b model.Booking) bool {
		_, ok := wanted[b.SlotID]
		return ok
	}), nil
}

func (r *BookingRepository) ListConfirmedByTeams(ctx context.Context, teamIDs []uuid.UUID) ([]*model.Booking, error) {
	defer r.store.lock(ctx)()

	wanted := make(map[uuid.UUID]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}

	return r.filter(func(b model.Booking) bool {
		_, ok := wanted[b.TeamID]
		return ok && b.IsConfirmed
	}), nil
}

// ListBySlot все брони слота, для проверок в тестах
func (r *BookingRepository) ListBySlot(ctx context.Context, slotID uuid.UUID) ([]*model.Booking, error) {
	return r.ListBySlots(ctx, []uuid.UUID{slotID})
}

func (r *BookingRepository) filter(match func(b model.Booking) bool) []*model.Booking {
	var out []*model.Booking
	for _, b := range r.store.state.bookings {
		if match(b) {
			found := b
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *BookingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.store.lock(ctx)()

	if _, ok := r.store.state.bookings[id]; !ok {
		return false, nil
	}
	delete(r.store.state.bookings, id)
	return true, nil
}

func (r *BookingRepository) DeleteBySlot(ctx context.Context, slotID uuid.UUID) (int64, error) {
	defer r.store.lock(ctx)()

	var count int64
	for id, b := range r.store.state.bookings {
		if b.SlotID == slotID {
			delete(r.store.state.bookings, id)
			count++
		}
	}
	return count, nil
}
