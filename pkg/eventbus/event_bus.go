// Package eventbus provides the message-bus abstraction the engine consumes
// and publishes through. Delivery is at-least-once; handlers must tolerate
// re-execution.
package eventbus

import (
	"context"

	"github.com/LeviathanIsI/barkbase-sub003/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one message. Returning an error nacks the message
// for redelivery; one handler's error never affects sibling messages.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
