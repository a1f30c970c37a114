package service

import (
	"context"
	"fmt"
	"time"

	"github.com/courtbook/courtbook/internal/model"
)

// ConflictDetector decides whether a candidate interval collides with
// existing active reservations on the same court and date.
type ConflictDetector struct {
	reservations ReservationStore
}

func NewConflictDetector(reservations ReservationStore) *ConflictDetector {
	return &ConflictDetector{reservations: reservations}
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Half-open semantics: intervals sharing only an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict scans active reservations for the court and date and
// returns the first one overlapping [start, end), or nil. The store
// orders by creation time, so the earliest booking wins and a newer
// request is the one rejected — an existing reservation is never
// displaced by a conflicting attempt. excludeID skips the reservation
// being modified; pass 0 for creations.
func (d *ConflictDetector) FindConflict(ctx context.Context, orgID, courtID int64, date time.Time, start, end time.Time, excludeID int64) (*model.Reservation, error) {
	existing, err := d.reservations.ListActiveForCourtDate(ctx, orgID, courtID, date)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	for _, res := range existing {
		if res.ID == excludeID {
			continue
		}
		if Overlaps(start, end, res.StartTime, res.EndTime) {
			return res, nil
		}
	}

	return nil, nil
}
