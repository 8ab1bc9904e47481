// Package settings is the admin-editable document of integration credentials.
// An empty field disables the integration that needs it.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

const (
	DocKey     = "settings"
	SchemaName = "settings"
)

var Schema = docstore.Schema{Name: SchemaName, Version: 1}

// Settings holds every third-party credential the storefront uses.
type Settings struct {
	GeminiAPIKey        string `json:"gemini_api_key"`
	OAuthClientID       string `json:"oauth_client_id"`
	EmailServiceID      string `json:"email_service_id"`
	EmailSignupTemplate string `json:"email_signup_template"`
	EmailResetTemplate  string `json:"email_reset_template"`
	EmailOrderTemplate  string `json:"email_order_template"`
	EmailPublicKey      string `json:"email_public_key"`
	PayPalRecipient     string `json:"paypal_recipient"`
	MpesaBusinessNumber string `json:"mpesa_business_number"`
	MpesaType           string `json:"mpesa_type"` // paybill | till
	GatewayPublicKey    string `json:"gateway_public_key"`
	GatewayLive         bool   `json:"gateway_live"`
}

// EmailConfigured reports whether the email service can send the given template.
func (s Settings) EmailConfigured(template string) bool {
	return s.EmailServiceID != "" && s.EmailPublicKey != "" && template != ""
}

// Masked returns a copy safe to show an administrator: secrets keep only
// their last four characters.
func (s Settings) Masked() Settings {
	s.GeminiAPIKey = mask(s.GeminiAPIKey)
	s.EmailPublicKey = mask(s.EmailPublicKey)
	s.GatewayPublicKey = mask(s.GatewayPublicKey)
	return s
}

// Apply copies every non-nil field of req into s.
func (s *Settings) Apply(req validation.SettingsRequest) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&s.GeminiAPIKey, req.GeminiAPIKey)
	set(&s.OAuthClientID, req.OAuthClientID)
	set(&s.EmailServiceID, req.EmailServiceID)
	set(&s.EmailSignupTemplate, req.EmailSignupTemplate)
	set(&s.EmailResetTemplate, req.EmailResetTemplate)
	set(&s.EmailOrderTemplate, req.EmailOrderTemplate)
	set(&s.EmailPublicKey, req.EmailPublicKey)
	set(&s.PayPalRecipient, req.PayPalRecipient)
	set(&s.MpesaBusinessNumber, req.MpesaBusinessNumber)
	set(&s.MpesaType, req.MpesaType)
	set(&s.GatewayPublicKey, req.GatewayPublicKey)
	if req.GatewayLive != nil {
		s.GatewayLive = *req.GatewayLive
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Store keeps the settings document in the state table.
type Store struct {
	docs *docstore.Store
}

func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs}
}

func empty() Settings { return Settings{} }

// Current returns the stored settings, or all-empty settings when none were saved.
func (s *Store) Current(ctx context.Context) (Settings, error) {
	st, err := docstore.Read(ctx, s.docs, DocKey, SchemaName, empty)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

// Update applies req and returns the new settings.
func (s *Store) Update(ctx context.Context, req validation.SettingsRequest) (Settings, error) {
	if err := validation.Check(req); err != nil {
		return Settings{}, err
	}
	return docstore.Update(ctx, s.docs, DocKey, SchemaName, empty, func(st *Settings) error {
		st.Apply(req)
		return nil
	})
}
