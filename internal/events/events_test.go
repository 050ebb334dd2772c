package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(EventHoldCreated, func(e *Event) error {
		received = append(received, e)
		return nil
	})

	payload := HoldEventPayload{HoldID: "h-1", RoomID: "R1", Status: "active"}
	err := bus.PublishJSON(EventHoldCreated, "h-1", payload)
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, EventHoldCreated, received[0].Type)
	assert.Equal(t, "h-1", received[0].Key)
	assert.False(t, received[0].CreatedAt.IsZero())

	var got HoldEventPayload
	require.NoError(t, json.Unmarshal(received[0].Payload, &got))
	assert.Equal(t, payload, got)
}

func TestEventBusIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	bus.Subscribe(EventReservationCancelled, func(*Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventReservationConfirmed, "42", ReservationEventPayload{ReservationID: 42}))
	assert.Zero(t, calls)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventHoldReleased, "h-1", nil))
}

func TestBusPublisher(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(EventReservationConfirmed, func(e *Event) error {
		received = append(received, e)
		return nil
	})

	var pub Publisher = NewBusPublisher(bus)
	err := pub.Publish(context.Background(), EventReservationConfirmed, "7",
		ReservationEventPayload{ReservationID: 7, HoldID: "h-7", Status: "ACTIVA"})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.NoError(t, pub.Close())
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = NoopPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), EventHoldCreated, "h-1", nil))
	assert.NoError(t, pub.Close())
}
