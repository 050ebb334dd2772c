package models

import (
	"strings"
	"time"
)

// Reservation is the durable record of a guest occupying rooms for a date range.
// Reservations are never physically deleted; cancellation is logical.
type Reservation struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id,omitempty"`
	ExternalUserID int64     `json:"external_user_id,omitempty"`
	TotalCost      float64   `json:"total_cost"`
	RegisteredAt   time.Time `json:"registered_at"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	// OverallStatus is free text as stored ("ACTIVA", "CANCELADA", "EXPIRADO",
	// plus whatever legacy values the database carries). Use NormalizeState for
	// any availability decision.
	OverallStatus string    `json:"overall_status"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RoomAssignment links a reservation to a specific room with the money
// breakdown for that room.
type RoomAssignment struct {
	ID            int64     `json:"id"`
	RoomID        string    `json:"room_id"`
	ReservationID int64     `json:"reservation_id"`
	Capacity      int       `json:"capacity"`
	ComputedCost  float64   `json:"computed_cost"`
	Discount      float64   `json:"discount"`
	Taxes         float64   `json:"taxes"`
	Active        bool      `json:"active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DiscountApplication attaches a discount amount to a room assignment.
type DiscountApplication struct {
	ID           int64   `json:"id"`
	AssignmentID int64   `json:"assignment_id"`
	DiscountID   int64   `json:"discount_id"`
	Amount       float64 `json:"amount"`
	Active       bool    `json:"active"`
}

// ReservationState is the closed interpretation of the free-text overall status.
type ReservationState int

const (
	StateUnknown ReservationState = iota
	StateActive
	StateCancelled
	StateExpired
)

func (s ReservationState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions may leave this state.
func (s ReservationState) Terminal() bool {
	return s == StateCancelled || s == StateExpired
}

// NormalizeState maps a stored overall-status string to a ReservationState.
// The match is deliberately lenient: trimmed, upper-cased, substring — the
// persistence layer carries legacy free-text values like "Cancelada por admin".
func NormalizeState(raw string) ReservationState {
	status := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(status, StatusCancelled):
		return StateCancelled
	case strings.Contains(status, StatusExpired):
		return StateExpired
	case strings.Contains(status, StatusActive):
		return StateActive
	default:
		return StateUnknown
	}
}

// CountsAgainstAvailability reports whether a reservation with this stored
// status blocks calendar dates.
func CountsAgainstAvailability(raw string) bool {
	state := NormalizeState(raw)
	return state != StateCancelled && state != StateExpired
}
