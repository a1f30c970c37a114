package service

import (
	"context"
	"time"

	"github.com/courtbook/courtbook/internal/model"
)

// Clock supplies the current instant. Injected so tests control time.
type Clock func() time.Time

// ReservationStore persists reservations. Every method is scoped to one
// organization; implementations must include the organization id in the
// underlying query, not filter after the fact.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, orgID, id int64) (*model.Reservation, error)
	// ListActiveForCourtDate returns reservations with an active status
	// (pending, confirmed, checked_in) for the court and calendar date,
	// ordered by creation so the earliest booking wins ties.
	ListActiveForCourtDate(ctx context.Context, orgID, courtID int64, date time.Time) ([]*model.Reservation, error)
	// Update persists the reservation only while its stored status still
	// equals from; a concurrent transition must surface as
	// base.ErrStaleUpdate, never overwrite the newer row.
	Update(ctx context.Context, res *model.Reservation, from model.ReservationStatus) error
}

// CourtStore reads courts, scoped to one organization.
type CourtStore interface {
	GetByID(ctx context.Context, orgID, id int64) (*model.Court, error)
	ListByClub(ctx context.Context, orgID, clubID int64) ([]*model.Court, error)
}

// ClubStore reads clubs, scoped to one organization.
type ClubStore interface {
	GetByID(ctx context.Context, orgID, id int64) (*model.Club, error)
}

// CourtLocker grants an exclusive per-court lock for the critical
// recheck-and-persist section. Lock returns the release function; an
// implementation that cannot acquire the lock within its bounded wait
// returns an error instead of blocking indefinitely.
type CourtLocker interface {
	LockCourt(ctx context.Context, courtID int64) (func(), error)
}

// GridCache stores availability grids. The cache is advisory: entries may
// be stale within their TTL and implementations never fail a read, they
// just miss. InvalidateTag evicts every entry added under the tag.
type GridCache interface {
	Get(key string) (*model.AvailabilityGrid, bool)
	Add(key, tag string, grid *model.AvailabilityGrid)
	InvalidateTag(tag string)
}
