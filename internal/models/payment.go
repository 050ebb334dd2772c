package models

import "time"

// Payment is the bookkeeping record produced once per successful confirmation.
type Payment struct {
	ID             int64     `json:"id"`
	ReservationID  int64     `json:"reservation_id"`
	HoldID         string    `json:"hold_id,omitempty"`
	PayerReference string    `json:"payer_reference,omitempty"`
	MethodID       int       `json:"method_id"`
	TotalAmount    float64   `json:"total_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

// CancellationResult is the structured outcome of a cancellation request.
// Expected business failures (missing reservation, already cancelled) land
// here with Success=false; only storage faults surface as errors.
type CancellationResult struct {
	Success      bool    `json:"success"`
	RefundAmount float64 `json:"refund_amount"`
	Message      string  `json:"message"`
}
