package settings

import (
	"context"
	"testing"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/aws/awstest"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

func strPtr(s string) *string { return &s }

func newTestStore() *Store {
	fake := awstest.NewDynamo(map[string]string{"state": "doc_key"})
	return NewStore(docstore.NewStore(fake, "state", docstore.NewRegistry(Schema)))
}

func TestCurrentDefaultsToEmpty(t *testing.T) {
	st, err := newTestStore().Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if st != (Settings{}) {
		t.Fatalf("expected empty settings, got %+v", st)
	}
}

func TestUpdateKeepsUnsetFields(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if _, err := s.Update(ctx, validation.SettingsRequest{GeminiAPIKey: strPtr("AIzaSecretKey1234")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	st, err := s.Update(ctx, validation.SettingsRequest{PayPalRecipient: strPtr("shop@glaze.test")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if st.GeminiAPIKey != "AIzaSecretKey1234" || st.PayPalRecipient != "shop@glaze.test" {
		t.Fatalf("unexpected settings: %+v", st)
	}

	m := st.Masked()
	if m.GeminiAPIKey != "****1234" || m.PayPalRecipient != "shop@glaze.test" {
		t.Fatalf("unexpected masking: %+v", m)
	}
}

func TestUpdateValidates(t *testing.T) {
	s := newTestStore()
	_, err := s.Update(context.Background(), validation.SettingsRequest{MpesaBusinessNumber: strPtr("174379")})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmailConfigured(t *testing.T) {
	st := Settings{EmailServiceID: "svc", EmailPublicKey: "pk", EmailSignupTemplate: "tpl"}
	if !st.EmailConfigured(st.EmailSignupTemplate) {
		t.Fatalf("expected configured")
	}
	if st.EmailConfigured(st.EmailResetTemplate) {
		t.Fatalf("reset template is empty")
	}
}
