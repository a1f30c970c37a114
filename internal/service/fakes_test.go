package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courtbook/courtbook/internal/cache"
	"github.com/courtbook/courtbook/internal/model"
	"github.com/courtbook/courtbook/internal/repository/base"
)

// testClock is a controllable time source shared by a test environment.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{current: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// memStore is an in-memory implementation of the store ports. Reads return
// copies so concurrent booking attempts cannot race on shared structs.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	seq          int64
	clubs        map[int64]*model.Club
	courts       map[int64]*model.Court
	reservations map[int64]*model.Reservation

	failCreate error
	createTail int // remaining Create calls that fail with failCreate
	failList   error
	listTail   int // remaining ListActiveForCourtDate calls that fail with failList

	beforeUpdate func() // runs before Update takes the store lock
}

func newMemStore() *memStore {
	return &memStore{
		nextID:       1,
		clubs:        make(map[int64]*model.Club),
		courts:       make(map[int64]*model.Court),
		reservations: make(map[int64]*model.Reservation),
	}
}

func (s *memStore) putClub(club *model.Club) *model.Club {
	s.mu.Lock()
	defer s.mu.Unlock()
	if club.ID == 0 {
		club.ID = s.nextID
		s.nextID++
	}
	s.clubs[club.ID] = club
	return club
}

func (s *memStore) putCourt(court *model.Court) *model.Court {
	s.mu.Lock()
	defer s.mu.Unlock()
	if court.ID == 0 {
		court.ID = s.nextID
		s.nextID++
	}
	s.courts[court.ID] = court
	return court
}

func (s *memStore) GetByID(ctx context.Context, orgID, id int64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok || res.OrganizationID != orgID {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (s *memStore) Create(ctx context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createTail > 0 {
		s.createTail--
		return s.failCreate
	}
	res.ID = s.nextID
	s.nextID++
	s.seq++
	res.CreatedAt = time.Unix(0, s.seq)
	res.UpdatedAt = res.CreatedAt
	cp := *res
	s.reservations[res.ID] = &cp
	return nil
}

func (s *memStore) Update(ctx context.Context, res *model.Reservation, from model.ReservationStatus) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reservations[res.ID]
	if !ok || stored.OrganizationID != res.OrganizationID {
		return errors.New("reservation not found")
	}
	if stored.Status != from {
		return base.ErrStaleUpdate
	}
	cp := *res
	cp.CreatedAt = stored.CreatedAt
	s.reservations[res.ID] = &cp
	return nil
}

func (s *memStore) ListActiveForCourtDate(ctx context.Context, orgID, courtID int64, date time.Time) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listTail > 0 {
		s.listTail--
		return nil, s.failList
	}
	var out []*model.Reservation
	for _, res := range s.reservations {
		if res.OrganizationID != orgID || res.CourtID != courtID {
			continue
		}
		if !res.Date.Equal(date) || !res.Status.IsActive() {
			continue
		}
		cp := *res
		out = append(out, &cp)
	}
	// created_at ascending, matching the SQL ordering
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

type clubStoreFake struct{ *memStore }

func (s clubStoreFake) GetByID(ctx context.Context, orgID, id int64) (*model.Club, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	club, ok := s.clubs[id]
	if !ok || club.OrganizationID != orgID {
		return nil, nil
	}
	cp := *club
	return &cp, nil
}

type courtStoreFake struct{ *memStore }

func (s courtStoreFake) GetByID(ctx context.Context, orgID, id int64) (*model.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	court, ok := s.courts[id]
	if !ok || court.OrganizationID != orgID {
		return nil, nil
	}
	cp := *court
	return &cp, nil
}

func (s courtStoreFake) ListByClub(ctx context.Context, orgID, clubID int64) ([]*model.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, court := range s.courts {
		if court.OrganizationID == orgID && court.ClubID == clubID {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	out := make([]*model.Court, 0, len(ids))
	for _, id := range ids {
		cp := *s.courts[id]
		out = append(out, &cp)
	}
	return out, nil
}

// memLocker is a per-court mutex map with a bounded wait.
type memLocker struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
	wait  time.Duration
}

func newMemLocker(wait time.Duration) *memLocker {
	return &memLocker{locks: make(map[int64]chan struct{}), wait: wait}
}

func (l *memLocker) LockCourt(ctx context.Context, courtID int64) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[courtID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[courtID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-time.After(l.wait):
		return nil, errors.New("lock wait timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// testEnv wires the booking core over in-memory fakes.
type testEnv struct {
	store        *memStore
	clock        *testClock
	cache        *cache.AvailabilityCache
	booking      *BookingService
	availability *AvailabilityService

	org   *model.Organization
	club  *model.Club
	court *model.Court
}

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	store := newMemStore()
	clock := newTestClock(testNow)
	gridCache := cache.New(64, time.Minute)
	logger := zap.NewNop()

	guard := NewTenantGuard(logger)
	detector := NewConflictDetector(store)
	pricing := NewPricingEngine(PricingConfig{
		PeakStartMinute:  18 * 60,
		PeakEndMinute:    22 * 60,
		PeakSurcharge:    decimal.NewFromFloat(0.2),
		WeekendSurcharge: decimal.NewFromFloat(0.1),
		PartyBaseline:    2,
		ExtraGuestFee:    decimal.RequireFromString("5.00"),
	})

	availability := NewAvailabilityService(
		clubStoreFake{store}, courtStoreFake{store}, detector, gridCache, guard, logger, 60, clock.Now,
	)
	booking := NewBookingService(
		store, courtStoreFake{store}, clubStoreFake{store},
		detector, pricing, guard, newMemLocker(2*time.Second), availability, logger,
		BookingRules{MinDuration: 30 * time.Minute, MaxDuration: 3 * time.Hour},
		clock.Now,
	)

	env := &testEnv{
		store:        store,
		clock:        clock,
		cache:        gridCache,
		booking:      booking,
		availability: availability,
	}

	env.org = &model.Organization{ID: 100, Name: "Riverside Sports", IsActive: true}
	env.club = store.putClub(&model.Club{
		OrganizationID: env.org.ID,
		Name:           "Riverside Club",
		OpenMinute:     8 * 60,
		CloseMinute:    22 * 60,
		IsActive:       true,
	})
	env.court = store.putCourt(&model.Court{
		ClubID:         env.club.ID,
		OrganizationID: env.org.ID,
		Name:           "Court 1",
		Surface:        "clay",
		HourlyRate:     decimal.RequireFromString("20.00"),
		IsActive:       true,
	})

	return env
}

func (e *testEnv) addCourt(name string) *model.Court {
	return e.store.putCourt(&model.Court{
		ClubID:         e.club.ID,
		OrganizationID: e.org.ID,
		Name:           name,
		Surface:        "hard",
		HourlyRate:     decimal.RequireFromString("20.00"),
		IsActive:       true,
	})
}

func (e *testEnv) createInput(day, start, end string) CreateReservationInput {
	return CreateReservationInput{
		OrganizationID: e.org.ID,
		ClubID:         e.club.ID,
		CourtID:        e.court.ID,
		Start:          mustTime(day + "T" + start + ":00Z"),
		End:            mustTime(day + "T" + end + ":00Z"),
		PartySize:      2,
	}
}

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}
