// Package consultant recommends a catalog shade from a description or a
// selfie using a generative model with structured output.
package consultant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// MaxImageBytes is the largest decoded image accepted.
const MaxImageBytes = 4 << 20

const failureMsg = "Sorry, our beauty bot is touching up its makeup. Please try again!"

// Recommendation is the model's structured answer.
type Recommendation struct {
	ProductID string `json:"productId"`
	Reasoning string `json:"reasoning"`
}

// Advice is a recommendation resolved against the catalog.
type Advice struct {
	Product   catalog.Product `json:"product"`
	Reasoning string          `json:"reasoning"`
}

// Prompt is one request to the model.
type Prompt struct {
	System   string
	Text     string
	Image    []byte
	MimeType string
}

// Model produces a Recommendation for a prompt.
type Model interface {
	Recommend(ctx context.Context, apiKey string, p Prompt) (Recommendation, error)
}

type CatalogSource interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

type SettingsSource interface {
	Current(ctx context.Context) (settings.Settings, error)
}

type Consultant struct {
	products CatalogSource
	settings SettingsSource
	model    Model
	logger   *slog.Logger
}

func New(products CatalogSource, src SettingsSource, model Model, logger *slog.Logger) *Consultant {
	return &Consultant{products: products, settings: src, model: model, logger: logger}
}

// Recommend picks a product for req. The answer always names a product
// currently in the catalog.
func (c *Consultant) Recommend(ctx context.Context, req validation.RecommendRequest) (Advice, error) {
	if err := validation.Check(req); err != nil {
		return Advice{}, err
	}
	var image []byte
	if req.ImageBase64 != "" {
		var err error
		image, err = base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return Advice{}, apperr.Validation("invalid_image", "the image could not be read")
		}
		if len(image) > MaxImageBytes {
			return Advice{}, apperr.Validation("image_too_large", "images must be 4 MB or smaller")
		}
	}

	st, err := c.settings.Current(ctx)
	if err != nil {
		return Advice{}, err
	}
	if st.GeminiAPIKey == "" {
		return Advice{}, apperr.NotConfigured("consultant_not_configured", "the shade consultant is not set up yet")
	}
	products, err := c.products.List(ctx)
	if err != nil {
		return Advice{}, err
	}
	system, err := SystemInstruction(products)
	if err != nil {
		return Advice{}, err
	}

	rec, err := c.model.Recommend(ctx, st.GeminiAPIKey, Prompt{
		System:   system,
		Text:     userText(strings.TrimSpace(req.Text), image != nil),
		Image:    image,
		MimeType: req.MimeType,
	})
	if err != nil {
		c.logger.Error("shade consultant request failed", "err", err)
		return Advice{}, apperr.Integration("consultant_failed", failureMsg, err)
	}
	for _, p := range products {
		if p.ID == rec.ProductID {
			return Advice{Product: p, Reasoning: rec.Reasoning}, nil
		}
	}
	c.logger.Error("shade consultant recommended an unknown product", "product_id", rec.ProductID)
	return Advice{}, apperr.Integration("bad_recommendation", failureMsg, fmt.Errorf("unknown product %q", rec.ProductID))
}

type promptProduct struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Shade string `json:"shade"`
	Hex   string `json:"hex"`
}

// SystemInstruction fixes the model to the given catalog.
func SystemInstruction(products []catalog.Product) (string, error) {
	list := make([]promptProduct, 0, len(products))
	for _, p := range products {
		list = append(list, promptProduct{ID: p.ID, Name: p.Name, Shade: p.Shade, Hex: p.Hex})
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal catalog for prompt: %w", err)
	}
	return `You are "GlowBot", a beauty consultant for the lipgloss brand "GLAZE".
Your goal is to recommend the best lipgloss shade from the provided product list based on the user's input (either a text description or an image analysis).

The available products are:
` + string(raw) + `

Rules:
1. Only recommend products from this list.
2. Be trendy, friendly, and enthusiastic (Gen Z/Millennial friendly tone).
3. Briefly explain why the shade matches their skin tone or vibe.
4. Return the result in a specific JSON format.
`, nil
}

func userText(text string, withImage bool) string {
	if withImage {
		s := "Analyze this image (focus on skin tone, undertone, and overall makeup vibe) and recommend the best Glaze lipgloss shade."
		if text != "" {
			s += " User extra notes: " + text
		}
		return s
	}
	return fmt.Sprintf("User description: %q. Recommend the best Glaze lipgloss shade.", text)
}
