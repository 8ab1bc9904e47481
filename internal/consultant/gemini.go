package consultant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for recommendations.
const DefaultModel = "gemini-2.5-flash"

// Gemini calls the Gemini API. A client is built per request because the API
// key lives in the admin-editable settings.
type Gemini struct {
	Model      string
	BaseURL    string // empty for the public endpoint
	HTTPClient *http.Client
}

func NewGemini(httpClient *http.Client) *Gemini {
	return &Gemini{Model: DefaultModel, HTTPClient: httpClient}
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"productId": {Type: genai.TypeString, Description: "The ID of the recommended product"},
		"reasoning": {Type: genai.TypeString, Description: "A short, fun explanation of why this shade works."},
	},
	Required: []string{"productId", "reasoning"},
}

func (g *Gemini) Recommend(ctx context.Context, apiKey string, p Prompt) (Recommendation, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.BaseURL},
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("create genai client: %w", err)
	}

	var parts []*genai.Part
	if len(p.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(p.Image, p.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(p.Text))

	resp, err := client.Models.GenerateContent(ctx, g.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema,
		})
	if err != nil {
		return Recommendation{}, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Recommendation{}, errors.New("empty model response")
	}
	var rec Recommendation
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return Recommendation{}, fmt.Errorf("decode model response: %w", err)
	}
	return rec, nil
}
