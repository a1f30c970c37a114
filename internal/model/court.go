package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoursWindow is an operating window expressed as minutes from midnight,
// half-open: a court is bookable for intervals inside [Open, Close).
type HoursWindow struct {
	OpenMinute  int `json:"open_minute"`
	CloseMinute int `json:"close_minute"`
}

// Court is a bookable resource belonging to one club.
type Court struct {
	ID             int64           `json:"id"`
	ClubID         int64           `json:"club_id"`
	OrganizationID int64           `json:"organization_id"`
	Name           string          `json:"name"`
	Surface        string          `json:"surface"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
	IsActive       bool            `json:"is_active"`
	InMaintenance  bool            `json:"in_maintenance"`
	// HoursOverride maps weekday to a window that replaces the club
	// default for that day. Nil or missing weekday means no override.
	HoursOverride map[time.Weekday]HoursWindow `json:"hours_override,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// EffectiveHours returns the operating window for the given weekday,
// preferring the court override over the club default.
func (c *Court) EffectiveHours(club *Club, day time.Weekday) HoursWindow {
	if c.HoursOverride != nil {
		if w, ok := c.HoursOverride[day]; ok {
			return w
		}
	}
	return HoursWindow{OpenMinute: club.OpenMinute, CloseMinute: club.CloseMinute}
}
