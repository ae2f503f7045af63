// Package events carries order lifecycle notifications to live
// subscribers: the in-process kitchen-display hub and, when configured,
// a NATS subject for other services. Delivery is best-effort and
// at-least-once; a failed publish never affects the committed order.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	OrdersTopic = "orders.updated"

	EventOrderUpdated = "order.updated"
	EventOrderDeleted = "order.deleted"
)

// OrderEvent is published after every state-changing ledger operation.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TenantID   uuid.UUID `json:"tenant_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Status     string    `json:"status"`
}

// Publisher delivers order events to one sink.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
	Close() error
}
