package models

const (
	// Stored overall-status markers for reservations. Matching is substring
	// and case-insensitive, see NormalizeState.
	StatusActive    = "ACTIVA"
	StatusCancelled = "CANCELADA"
	StatusExpired   = "EXPIRADO"
)

const (
	// Hold lifecycle statuses.
	HoldStatusActive    = "active"
	HoldStatusConfirmed = "confirmed"
	HoldStatusReleased  = "released"
)

const (
	// DefaultHoldTTL is the default hold lifetime in seconds.
	DefaultHoldTTL = 15 * 60

	// DefaultPaymentMethodID is the payment method used for integration
	// confirmations when none is configured (2 = card).
	DefaultPaymentMethodID = 2

	// DateLayout is the day-granularity layout used for reservation dates.
	DateLayout = "2006-01-02"

	// TimestampLayout is the second-granularity layout used in API payloads.
	TimestampLayout = "2006-01-02 15:04:05"
)
