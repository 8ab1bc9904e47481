package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/imrishuroy/glaze-storefront/internal/aws"
	"github.com/imrishuroy/glaze-storefront/internal/events"
	"github.com/imrishuroy/glaze-storefront/internal/idempotency"
	"github.com/imrishuroy/glaze-storefront/internal/mailer"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
)

// Processor sends the confirmation email of each placed order exactly once.
type Processor struct {
	idem     *idempotency.Store
	orders   orders.Repository
	settings SettingsSource
	mail     Mailer
	metrics  *aws.Metrics
	logger   *slog.Logger
}

func NewProcessor(idem *idempotency.Store, repo orders.Repository, src SettingsSource, mail Mailer, metrics *aws.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		idem:     idem,
		orders:   repo,
		settings: src,
		mail:     mail,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes an SQS batch. Messages that fail are reported back so
// only they are redelivered; undecodable bodies are dropped.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		placed, err := events.Decode([]byte(rec.Body))
		if err != nil {
			p.logger.Error("dropping undecodable message", "message_id", rec.MessageId, "err", err)
			continue
		}
		if err := p.Process(ctx, placed); err != nil {
			p.logger.Error("worker error", "message_id", rec.MessageId, "order_id", placed.OrderID, "err", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

// Process handles one OrderPlaced event. It satisfies events.Handler.
func (p *Processor) Process(ctx context.Context, ev events.OrderPlaced) error {
	key := idempotency.NotifyKey(ev.OrderID)
	claimed, err := p.idem.Claim(ctx, key, ev.OrderID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		p.logger.Info("duplicate order event, skipping", "order_id", ev.OrderID)
		return nil
	}

	result, err := p.notify(ctx, ev.OrderID)
	if err != nil {
		if markErr := p.idem.MarkFailed(ctx, key, err.Error()); markErr != nil {
			p.logger.Error("failed to mark idempotency failed", "key", key, "err", markErr)
		}
		return err
	}
	if err := p.idem.MarkDone(ctx, key, result); err != nil {
		return fmt.Errorf("mark %s done: %w", key, err)
	}
	return nil
}

func (p *Processor) notify(ctx context.Context, orderID string) (string, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("fetch order: %w", err)
	}
	if o == nil {
		return "", fmt.Errorf("order not found: %s", orderID)
	}
	st, err := p.settings.Current(ctx)
	if err != nil {
		return "", err
	}

	err = p.mail.Send(ctx, st, st.EmailOrderTemplate, confirmationParams(o))
	if errors.Is(err, mailer.ErrNotConfigured) {
		p.logger.Info("email not configured, skipping order confirmation", "order_id", o.ID)
		p.count(ctx, MetricConfirmationsSkipped)
		return "skipped", nil
	}
	if err != nil {
		return "", fmt.Errorf("send confirmation: %w", err)
	}
	p.logger.Info("order confirmation sent", "order_id", o.ID, "email", o.Customer.Email)
	p.count(ctx, MetricConfirmationsSent)
	return "sent", nil
}

func (p *Processor) count(ctx context.Context, name string) {
	if err := p.metrics.Count(ctx, name, 1, nil); err != nil {
		p.logger.Error("record metric failed", "metric", name, "err", err)
	}
}

// confirmationParams are the template variables of the order email. The
// shipping email is used so the receipt reaches the address typed at checkout.
func confirmationParams(o *orders.Order) map[string]string {
	lines := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, it.Name+" x"+strconv.Itoa(it.Quantity)+" $"+it.LineTotal().StringFixed(2))
	}
	to := o.Customer.Email
	if to == "" {
		to = o.CustomerEmail
	}
	return map[string]string{
		"to_email":       to,
		"to_name":        o.Customer.Name,
		"order_id":       o.ID,
		"order_date":     o.Date.Format("2006-01-02 15:04"),
		"items":          strings.Join(lines, "\n"),
		"total":          "$" + o.Total.StringFixed(2),
		"payment_method": string(o.PaymentMethod),
	}
}
