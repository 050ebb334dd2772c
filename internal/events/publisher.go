package events

import "context"

// Publisher delivers domain events to whatever transport is configured. The
// key groups events about the same entity so consumers see them in order.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }

// BusPublisher adapts the in-process EventBus to the Publisher interface.
type BusPublisher struct {
	bus *EventBus
}

func NewBusPublisher(bus *EventBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(_ context.Context, eventType, key string, payload interface{}) error {
	return p.bus.PublishJSON(eventType, key, payload)
}

func (p *BusPublisher) Close() error { return nil }
