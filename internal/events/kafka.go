package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkaGo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id, so one order's events stay
// on one partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkaGo.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderPlaced) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafkaGo.Header{
			{Key: "event_type", Value: []byte(TypeOrderPlaced)},
		},
	})
	if err != nil {
		return fmt.Errorf("write order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// maxHandlerAttempts bounds how often one message is handed to the handler
// before the consumer moves past it.
const maxHandlerAttempts = 3

// Fetch errors back off from minFetchBackoff, doubling up to maxFetchBackoff.
const (
	minFetchBackoff = 200 * time.Millisecond
	maxFetchBackoff = 30 * time.Second
)

// KafkaConsumer reads events in a consumer group and commits each message
// after its handler returns.
type KafkaConsumer struct {
	r       messageReader
	topic   string
	backoff time.Duration
	logger  *slog.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		r: kafkaGo.NewReader(kafkaGo.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		topic:   topic,
		backoff: minFetchBackoff,
		logger:  logger,
	}
}

// Consume blocks until ctx is cancelled.
func (c *KafkaConsumer) Consume(ctx context.Context, handle Handler) error {
	defer c.r.Close()
	var delay time.Duration
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer shutting down", "topic", c.topic)
				return nil
			}
			delay = nextBackoff(delay, c.backoff)
			c.logger.Error("error reading message", "topic", c.topic, "retry_in", delay, "err", err)
			if !sleep(ctx, delay) {
				c.logger.Info("consumer shutting down", "topic", c.topic)
				return nil
			}
			continue
		}
		delay = 0

		c.dispatch(ctx, msg, handle)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *KafkaConsumer) dispatch(ctx context.Context, msg kafkaGo.Message, handle Handler) {
	ev, err := Decode(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message", "offset", msg.Offset, "err", err)
		return
	}
	for attempt := 1; attempt <= maxHandlerAttempts; attempt++ {
		err = handle(ctx, ev)
		if err == nil {
			return
		}
		c.logger.Error("error handling message", "order_id", ev.OrderID, "attempt", attempt, "err", err)
		if ctx.Err() != nil {
			return
		}
	}
}

func nextBackoff(prev, base time.Duration) time.Duration {
	if base <= 0 {
		base = minFetchBackoff
	}
	if prev < base {
		return base
	}
	if prev*2 > maxFetchBackoff {
		return maxFetchBackoff
	}
	return prev * 2
}

// sleep waits for d and reports false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
