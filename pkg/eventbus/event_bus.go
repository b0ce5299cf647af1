// Package eventbus carries committed protocol events to off-core consumers:
// the scheduler, indexers, and the persistence projection.
package eventbus

import (
	"context"

	"github.com/autometa/autometa/pkg/events"
)

// Event is the subset of events.Event the bus needs to route a message.
type Event interface {
	GetType() events.EventType
}

// EventPublisher pushes one committed event, keyed for partition ordering:
// workflow id for registry and executor events, user address for escrow
// events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers per-type handlers and then consumes until the
// context ends. Register all handlers before calling Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
