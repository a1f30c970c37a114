package model

import "time"

// Club groups courts under one venue. Open/close minutes are the venue
// default operating window; courts may override it per weekday. All
// calendar-day and slot arithmetic is UTC; presenting local wall time is
// the caller's concern.
type Club struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	OpenMinute     int       `json:"open_minute"`
	CloseMinute    int       `json:"close_minute"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
