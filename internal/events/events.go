package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventHoldCreated          = "hold_created"
	EventHoldReleased         = "hold_released"
	EventReservationCreated   = "reservation_created"
	EventReservationConfirmed = "reservation_confirmed"
	EventReservationCancelled = "reservation_cancelled"
)

// HoldEventPayload describes a room hold snapshot for event consumers.
type HoldEventPayload struct {
	HoldID        string    `json:"hold_id"`
	RoomID        string    `json:"room_id"`
	ReservationID int64     `json:"reservation_id,omitempty"`
	Status        string    `json:"status"`
	EndAt         time.Time `json:"end_at"`
}

// ReservationEventPayload describes the minimal reservation snapshot for
// event consumers.
type ReservationEventPayload struct {
	ReservationID int64   `json:"reservation_id"`
	HoldID        string  `json:"hold_id,omitempty"`
	Status        string  `json:"status"`
	RefundAmount  float64 `json:"refund_amount,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType, key string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Key: key, Payload: raw, CreatedAt: time.Now()})
	return nil
}
