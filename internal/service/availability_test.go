package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtbook/courtbook/internal/model"
)

func TestGridKeyCanonicalization(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	a := GridKey(1, date, []int64{3, 1, 2})
	b := GridKey(1, date, []int64{2, 3, 1})
	assert.Equal(t, a, b, "court order must not change the key")

	c := GridKey(1, date, []int64{1, 2})
	assert.NotEqual(t, a, c, "different court sets must not collide")

	d := GridKey(2, date, []int64{3, 1, 2})
	assert.NotEqual(t, a, d, "different clubs must not collide")

	e := GridKey(1, date.AddDate(0, 0, 1), []int64{3, 1, 2})
	assert.NotEqual(t, a, e, "different dates must not collide")

	// ambiguous concatenations must stay distinct
	f := GridKey(1, date, []int64{1, 23})
	g := GridKey(1, date, []int64{12, 3})
	assert.NotEqual(t, f, g)
}

func TestGetAvailabilitySlotReasons(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) // today; clock at 09:00

	_, err := env.booking.CreateReservation(ctx, env.createInput("2025-03-01", "10:00", "11:00"))
	require.NoError(t, err)

	grid, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)

	slots := grid.Slots[env.court.ID]
	require.NotEmpty(t, slots)

	byStart := make(map[string]model.Slot, len(slots))
	for _, slot := range slots {
		byStart[slot.Start.Format("15:04")] = slot
	}

	// club hours 08:00–22:00, hourly slots
	assert.Len(t, slots, 14)
	assert.Equal(t, model.SlotPast, byStart["08:00"].Reason, "start before now is past")
	assert.Equal(t, model.SlotReserved, byStart["10:00"].Reason)
	assert.Equal(t, model.SlotAvailable, byStart["11:00"].Reason)
	assert.Equal(t, model.SlotAvailable, byStart["21:00"].Reason)
	assert.False(t, byStart["10:00"].Available)
	assert.True(t, byStart["11:00"].Available)
}

func TestGetAvailabilityMaintenanceAndClosed(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	maintCourt := env.addCourt("Court M")
	maintCourt.InMaintenance = true
	env.store.putCourt(maintCourt)

	closedCourt := env.addCourt("Court C")
	closedCourt.IsActive = false
	env.store.putCourt(closedCourt)

	grid, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)

	for _, slot := range grid.Slots[maintCourt.ID] {
		assert.Equal(t, model.SlotMaintenance, slot.Reason)
		assert.False(t, slot.Available)
	}
	for _, slot := range grid.Slots[closedCourt.ID] {
		assert.Equal(t, model.SlotClosed, slot.Reason)
		assert.False(t, slot.Available)
	}
}

func TestGetAvailabilityMatchesAuthoritativeRecompute(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := env.booking.CreateReservation(ctx, env.createInput("2025-03-10", "10:00", "11:00"))
	require.NoError(t, err)

	cached, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)

	// a cached read and a cold read at the same instant must agree
	env.cache.Purge()
	recomputed, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)

	assert.Equal(t, cached.Slots, recomputed.Slots)
}

func TestGetAvailabilityCacheInvalidatedByBooking(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	grid, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)
	for _, slot := range grid.Slots[env.court.ID] {
		assert.True(t, slot.Available)
	}

	// the same query again is a cache hit
	again, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)
	assert.Equal(t, grid.ComputedAt, again.ComputedAt)

	_, err = env.booking.CreateReservation(ctx, env.createInput("2025-03-10", "10:00", "11:00"))
	require.NoError(t, err)

	fresh, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, nil)
	require.NoError(t, err)

	var reserved bool
	for _, slot := range fresh.Slots[env.court.ID] {
		if slot.Start.Equal(mustTime("2025-03-10T10:00:00Z")) {
			reserved = slot.Reason == model.SlotReserved
		}
	}
	assert.True(t, reserved, "grid read after booking must reflect the write")
}

func TestGetAvailabilityInvalidatesEverySubsetKey(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	court2 := env.addCourt("Court 2")

	// warm two keys over different court subsets of the same (club, date)
	_, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, []int64{env.court.ID})
	require.NoError(t, err)
	_, err = env.availability.GetAvailability(ctx, env.org.ID, env.club.ID, date, []int64{env.court.ID, court2.ID})
	require.NoError(t, err)
	require.Equal(t, 2, env.cache.Len())

	_, err = env.booking.CreateReservation(ctx, env.createInput("2025-03-10", "10:00", "11:00"))
	require.NoError(t, err)

	assert.Equal(t, 0, env.cache.Len(), "a write must evict every key for its (club, date)")
}

func TestGetAvailabilitySurvivesCallerCancellation(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the rebuild is shared between callers, so the initiator's dead
	// context must not poison it
	grid, err := env.availability.GetAvailability(ctx, env.org.ID, env.club.ID,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, grid.Slots[env.court.ID])
}

func TestGetAvailabilityUnknownClub(t *testing.T) {
	env := newTestEnv()

	_, err := env.availability.GetAvailability(context.Background(), env.org.ID, 12345,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	// another tenant's club id behaves identically
	_, err = env.availability.GetAvailability(context.Background(), 999, env.club.ID,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAvailabilityForeignCourtFilter(t *testing.T) {
	env := newTestEnv()

	otherClub := env.store.putClub(&model.Club{
		OrganizationID: env.org.ID,
		Name:           "Annex",
		OpenMinute:     8 * 60,
		CloseMinute:    22 * 60,
		IsActive:       true,
	})
	foreignCourt := env.store.putCourt(&model.Court{
		ClubID:         otherClub.ID,
		OrganizationID: env.org.ID,
		Name:           "Annex 1",
		HourlyRate:     env.court.HourlyRate,
		IsActive:       true,
	})

	// requesting a court of a different club under this club is rejected
	_, err := env.availability.GetAvailability(context.Background(), env.org.ID, env.club.ID,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), []int64{foreignCourt.ID})
	assert.ErrorIs(t, err, ErrNotFound)
}
