package cache

import (
	"context"

	"fashion_shop/model"
)

// Deduper claims one-shot keys, used to drop repeated webhook deliveries.
type Deduper interface {
	// Acquire returns false when the key is already held.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event model.OrderEvent) error
}

// Subscription is a live feed of raw order event payloads.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

type EventSubscriber interface {
	SubscribeOrder(ctx context.Context, orderNumber string) (Subscription, error)
}
