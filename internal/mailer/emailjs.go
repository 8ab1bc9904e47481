// Package mailer sends transactional email through the EmailJS REST API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/settings"
)

// DefaultEndpoint is the EmailJS send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// ErrNotConfigured is returned when the settings lack the service id, the
// public key or the requested template.
var ErrNotConfigured = errors.New("email service not configured")

// EmailJS posts template sends to EmailJS.
type EmailJS struct {
	client   *http.Client
	endpoint string
}

// New creates an EmailJS mailer. A nil client uses a 10 second timeout.
func New(client *http.Client, endpoint string) *EmailJS {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &EmailJS{client: client, endpoint: endpoint}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send renders templateID with params using the credentials in st.
func (m *EmailJS) Send(ctx context.Context, st settings.Settings, templateID string, params map[string]string) error {
	if !st.EmailConfigured(templateID) {
		return ErrNotConfigured
	}
	body, err := json.Marshal(sendRequest{
		ServiceID:      st.EmailServiceID,
		TemplateID:     templateID,
		UserID:         st.EmailPublicKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
