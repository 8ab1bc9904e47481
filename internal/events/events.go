// Package events carries order-placed notifications from the API to the worker
// over SQS or Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// TypeOrderPlaced is the event_type attribute of OrderPlaced messages.
const TypeOrderPlaced = "order.placed"

// OrderPlaced is published once per created order.
type OrderPlaced struct {
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// Publisher delivers OrderPlaced events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev OrderPlaced) error
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev OrderPlaced) error

// Decode parses a message body.
func Decode(payload []byte) (OrderPlaced, error) {
	var ev OrderPlaced
	if err := json.Unmarshal(payload, &ev); err != nil {
		return OrderPlaced{}, fmt.Errorf("decode order event: %w", err)
	}
	if ev.OrderID == "" {
		return OrderPlaced{}, fmt.Errorf("decode order event: missing order_id")
	}
	return ev, nil
}

// Discard is used when no broker is configured. Events are logged and dropped.
type Discard struct {
	Logger *slog.Logger
}

func (d Discard) Publish(ctx context.Context, ev OrderPlaced) error {
	if d.Logger != nil {
		d.Logger.Warn("no event broker configured, dropping event", "event_type", TypeOrderPlaced, "order_id", ev.OrderID)
	}
	return nil
}
