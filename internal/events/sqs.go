package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/glaze-storefront/internal/aws"
)

// SQSPublisher sends events through the queue publisher.
type SQSPublisher struct {
	queue  *aws.Publisher
	logger *slog.Logger
}

func NewSQSPublisher(queue *aws.Publisher) *SQSPublisher {
	return &SQSPublisher{queue: queue, logger: slog.Default()}
}

// Publish groups and deduplicates by order id so a FIFO queue keeps each
// order's events in sequence and drops a repeated placement.
func (p *SQSPublisher) Publish(ctx context.Context, ev OrderPlaced) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	id, err := p.queue.Send(ctx, aws.Message{
		Body: string(body),
		Attributes: map[string]string{
			"event_type": TypeOrderPlaced,
			"order_id":   ev.OrderID,
		},
		GroupID: ev.OrderID,
		DedupID: ev.OrderID,
	})
	if err != nil {
		return err
	}
	p.logger.Debug("order event queued", "order_id", ev.OrderID, "message_id", id)
	return nil
}
