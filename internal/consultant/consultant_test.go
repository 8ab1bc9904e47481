package consultant

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

type staticCatalog []catalog.Product

func (s staticCatalog) List(ctx context.Context) ([]catalog.Product, error) { return s, nil }

type staticSettings settings.Settings

func (s staticSettings) Current(ctx context.Context) (settings.Settings, error) {
	return settings.Settings(s), nil
}

type fakeModel struct {
	rec    Recommendation
	err    error
	prompt Prompt
	key    string
	calls  int
}

func (m *fakeModel) Recommend(ctx context.Context, apiKey string, p Prompt) (Recommendation, error) {
	m.calls++
	m.key = apiKey
	m.prompt = p
	return m.rec, m.err
}

func newConsultant(model Model, key string) *Consultant {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(staticCatalog(catalog.Seed()), staticSettings{GeminiAPIKey: key}, model, logger)
}

func TestRecommendFromText(t *testing.T) {
	m := &fakeModel{rec: Recommendation{ProductID: "p4", Reasoning: "bold and juicy"}}
	c := newConsultant(m, "gem-key")

	adv, err := c.Recommend(context.Background(), validation.RecommendRequest{Text: "a night out"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if adv.Product.ID != "p4" || adv.Reasoning != "bold and juicy" {
		t.Fatalf("unexpected advice: %+v", adv)
	}
	if m.key != "gem-key" || m.prompt.Image != nil {
		t.Fatalf("unexpected model call: key=%s image=%v", m.key, m.prompt.Image)
	}
	if !strings.Contains(m.prompt.Text, `"a night out"`) {
		t.Fatalf("user text missing from prompt: %s", m.prompt.Text)
	}
	for _, p := range catalog.Seed() {
		if !strings.Contains(m.prompt.System, `"id":"`+p.ID+`"`) {
			t.Fatalf("system instruction must list %s: %s", p.ID, m.prompt.System)
		}
	}
}

func TestRecommendFromImage(t *testing.T) {
	m := &fakeModel{rec: Recommendation{ProductID: "p1", Reasoning: "clear"}}
	c := newConsultant(m, "k")
	img := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0xe0})

	_, err := c.Recommend(context.Background(), validation.RecommendRequest{ImageBase64: img, MimeType: "image/jpeg", Text: "soft"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(m.prompt.Image) != 4 || m.prompt.MimeType != "image/jpeg" || !strings.Contains(m.prompt.Text, "User extra notes: soft") {
		t.Fatalf("unexpected prompt: %+v", m.prompt)
	}
}

func TestRecommendErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := newConsultant(&fakeModel{}, "k").Recommend(ctx, validation.RecommendRequest{}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}

	m := &fakeModel{}
	if _, err := newConsultant(m, "").Recommend(ctx, validation.RecommendRequest{Text: "x"}); apperr.KindOf(err) != apperr.KindNotConfigured {
		t.Fatalf("expected NotConfigured, got %v", err)
	}
	if m.calls != 0 {
		t.Fatalf("model must not be called without a key")
	}

	big := base64.StdEncoding.EncodeToString(make([]byte, MaxImageBytes+1))
	if _, err := newConsultant(m, "k").Recommend(ctx, validation.RecommendRequest{ImageBase64: big, MimeType: "image/png"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected image_too_large, got %v", err)
	}

	_, err := newConsultant(&fakeModel{err: errors.New("503")}, "k").Recommend(ctx, validation.RecommendRequest{Text: "x"})
	if e, ok := apperr.As(err); !ok || e.Code != "consultant_failed" || e.Kind != apperr.KindIntegration {
		t.Fatalf("expected consultant_failed, got %v", err)
	}

	_, err = newConsultant(&fakeModel{rec: Recommendation{ProductID: "p99"}}, "k").Recommend(ctx, validation.RecommendRequest{Text: "x"})
	if e, ok := apperr.As(err); !ok || e.Code != "bad_recommendation" {
		t.Fatalf("expected bad_recommendation, got %v", err)
	}
}
