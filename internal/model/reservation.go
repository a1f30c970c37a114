package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCheckedIn ReservationStatus = "checked_in"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// statusRank orders the forward lifecycle. Cancelled sits outside the
// ordering and is handled explicitly by CanTransition.
var statusRank = map[ReservationStatus]int{
	ReservationStatusPending:   0,
	ReservationStatusConfirmed: 1,
	ReservationStatusCheckedIn: 2,
	ReservationStatusCompleted: 3,
}

// CanTransition reports whether a reservation may move from one status to
// another. Transitions are monotonic forward; the only sideways edge is
// cancellation of anything not yet completed.
func CanTransition(from, to ReservationStatus) bool {
	if from == ReservationStatusCancelled {
		return false
	}
	if to == ReservationStatusCancelled {
		return from != ReservationStatusCompleted
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// IsActive reports whether the status blocks the court for its interval.
func (s ReservationStatus) IsActive() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCheckedIn:
		return true
	}
	return false
}

// Reservation occupies one court for the half-open interval
// [StartTime, EndTime) on Date. Date is midnight UTC of the calendar day.
type Reservation struct {
	ID                 int64             `json:"id"`
	OrganizationID     int64             `json:"organization_id"`
	ClubID             int64             `json:"club_id"`
	CourtID            int64             `json:"court_id"`
	Date               time.Time         `json:"date"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	Status             ReservationStatus `json:"status"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	PartySize          int               `json:"party_size"`
	TotalPrice         decimal.Decimal   `json:"total_price"`
	CheckInCode        string            `json:"check_in_code"`
	CheckInRedeemed    bool              `json:"check_in_redeemed"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Overlaps reports whether the reservation's interval intersects
// [start, end) under half-open semantics: adjacent intervals do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
