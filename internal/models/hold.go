package models

import "time"

// Hold is a short-lived, non-durable reservation of a room pending
// confirmation. The id is an opaque token; callers may supply their own.
type Hold struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	ReservationID int64     `json:"reservation_id,omitempty"`
	Duration      int64     `json:"duration_seconds"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	Status        string    `json:"status"`
}

// ExpiredAt reports whether the hold is past its end timestamp at the given
// instant. Expiry is advisory: nothing reclaims the record eagerly, it is
// simply invalid on next access.
func (h *Hold) ExpiredAt(now time.Time) bool {
	return now.After(h.EndAt)
}
