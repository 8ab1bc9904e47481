package main

import (
	"context"

	"github.com/imrishuroy/glaze-storefront/internal/settings"
)

// Mailer sends one templated email.
type Mailer interface {
	Send(ctx context.Context, st settings.Settings, templateID string, params map[string]string) error
}

// SettingsSource supplies the current email credentials.
type SettingsSource interface {
	Current(ctx context.Context) (settings.Settings, error)
}

// Metric names emitted by the worker.
const (
	MetricConfirmationsSent    = "OrderConfirmationsSent"
	MetricConfirmationsSkipped = "OrderConfirmationsSkipped"
)
