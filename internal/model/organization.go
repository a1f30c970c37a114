package model

import "time"

// Organization is the tenant boundary. Every other entity carries an
// OrganizationID that must match the caller's scope on every query.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
