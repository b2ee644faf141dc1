package suggest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/ziyou/internal/tracing"
)

// Gemini REST API.
// Docs: https://ai.google.dev/api/generate-content

const (
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// ErrMissingAPIKey is returned when no Gemini key is configured.
var ErrMissingAPIKey = errors.New("gemini api key not configured")

// GeminiConfig configures the Gemini suggestion source.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiSource asks a Gemini model for structured game suggestions.
type GeminiSource struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewGeminiSource creates a Gemini-backed Source.
func NewGeminiSource(cfg GeminiConfig, logger *slog.Logger) *GeminiSource {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &GeminiSource{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
		log:     logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]geminiSchema `json:"properties,omitempty"`
	Items       *geminiSchema           `json:"items,omitempty"`
	Required    []string                `json:"required,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType"`
	ResponseSchema   *geminiSchema `json:"responseSchema"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// recommendationSchema is the structured output the model must produce.
var recommendationSchema = &geminiSchema{
	Type: "OBJECT",
	Properties: map[string]geminiSchema{
		"games": {
			Type:        "ARRAY",
			Description: "推荐的游戏列表",
			Items: &geminiSchema{
				Type: "OBJECT",
				Properties: map[string]geminiSchema{
					"name":    {Type: "STRING", Description: "游戏中文名"},
					"name_en": {Type: "STRING", Description: "游戏英文名，用于 RAWG API 搜索"},
					"reason":  {Type: "STRING", Description: "针对该玩家的一句话推荐理由"},
				},
				Required: []string{"name", "name_en", "reason"},
			},
		},
	},
	Required: []string{"games"},
}

// Suggest sends the profile prompt to Gemini and parses the returned games.
func (g *GeminiSource) Suggest(ctx context.Context, p Profile) ([]Suggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "suggest.gemini.Suggest",
		tracing.WithAttributes(attribute.String("gemini.model", g.model)),
	)
	defer span.End()

	if g.apiKey == "" {
		tracing.RecordError(span, ErrMissingAPIKey)
		return nil, ErrMissingAPIKey
	}

	g.log.Info("calling Gemini for recommendations", "model", g.model)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(p)}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   recommendationSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("gemini: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	var result geminiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("gemini: unexpected status %s", resp.Status)
		} else {
			err = fmt.Errorf("gemini: decode response: %w", err)
		}
		tracing.RecordError(span, err)
		return nil, err
	}
	if result.Error != nil {
		err := fmt.Errorf("gemini: api error %d: %s", result.Error.Code, result.Error.Message)
		tracing.RecordError(span, err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gemini: unexpected status %s", resp.Status)
		tracing.RecordError(span, err)
		return nil, err
	}

	suggestions, err := parseSuggestions(result)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	g.log.Info("Gemini returned game recommendations", "count", len(suggestions))
	tracing.AddSpanAttributes(span, attribute.Int("suggest.count", len(suggestions)))
	tracing.SetSpanOK(span)
	return suggestions, nil
}

// parseSuggestions decodes the JSON document the model wrote into its first candidate.
func parseSuggestions(result geminiResponse) ([]Suggestion, error) {
	if len(result.Candidates) == 0 {
		return nil, errors.New("gemini: response has no candidates")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	var payload struct {
		Games []Suggestion `json:"games"`
	}
	if err := json.Unmarshal([]byte(text.String()), &payload); err != nil {
		return nil, fmt.Errorf("gemini: decode structured output: %w", err)
	}

	out := make([]Suggestion, 0, len(payload.Games))
	for _, s := range payload.Games {
		if strings.TrimSpace(s.NameEN) == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
