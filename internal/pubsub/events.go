// Package pubsub fans out typed change notifications to any number of
// subscribers without blocking the publisher.
package pubsub

import (
	"context"
	"time"
)

// EventType says what happened to the payload.
type EventType string

const (
	AddedEvent   EventType = "added"
	UpdatedEvent EventType = "updated"
	RemovedEvent EventType = "removed"
)

// Event is one published notification.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out subscription channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher accepts events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
