package model

import "time"

// SlotReason explains why a slot is or is not bookable.
type SlotReason string

const (
	SlotAvailable   SlotReason = "available"
	SlotReserved    SlotReason = "reserved"
	SlotPast        SlotReason = "past"
	SlotMaintenance SlotReason = "maintenance"
	SlotClosed      SlotReason = "closed"
)

// Slot is one fixed-width interval in a court's daily grid.
type Slot struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Available bool       `json:"available"`
	Reason    SlotReason `json:"reason"`
}

// AvailabilityGrid is the per-court slot listing for one club and date.
// It is advisory: the authoritative overlap check happens again at write
// time, so a stale grid can never produce a conflicting booking.
type AvailabilityGrid struct {
	ClubID     int64            `json:"club_id"`
	Date       time.Time        `json:"date"`
	Slots      map[int64][]Slot `json:"slots"`
	ComputedAt time.Time        `json:"computed_at"`
}
