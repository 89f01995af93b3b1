package adapter

import (
	"context"
	"time"

	"course-payments/internal/domain/model"
)

// OrderEvent announces a committed order lifecycle change to downstream services.
type OrderEvent struct {
	ID         string
	Type       string // e.g. "order.completed"
	OrderID    string
	UserID     string
	Status     model.OrderStatus
	Amount     int64
	Currency   string
	OccurredAt time.Time
}

// OrderEventPublisher is fire-and-forget: a publish failure never rolls back
// or repeats the transition that produced the event.
type OrderEventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}
