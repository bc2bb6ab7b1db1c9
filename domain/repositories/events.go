package repositories

import "github.com/satriahrh/smartspeaker/domain/entities"

// EventPublisher receives voice loop events. Publish must not block.
type EventPublisher interface {
	Publish(event entities.Event)
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(entities.Event) {}
