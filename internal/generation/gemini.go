package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/pkg/utils"
)

const defaultModel = "gemini-1.5-flash"

// GeminiGenerator implements Generator with the Gemini API.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int32
	logger    *zap.Logger
}

// GeminiOption configures a GeminiGenerator.
type GeminiOption func(*GeminiGenerator)

// WithModel sets the model name.
func WithModel(name string) GeminiOption {
	return func(g *GeminiGenerator) {
		if name != "" {
			g.model = name
		}
	}
}

// WithMaxTokens sets the output token limit.
func WithMaxTokens(n int) GeminiOption {
	return func(g *GeminiGenerator) {
		if n > 0 {
			g.maxTokens = int32(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GeminiOption {
	return func(g *GeminiGenerator) { g.logger = l }
}

// NewGeminiGenerator creates a Gemini client for apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, &models.ConfigError{Msg: "gemini api key is required"}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g := &GeminiGenerator{client: client, model: defaultModel, maxTokens: 500}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = utils.OrNop(g.logger)
	return g, nil
}

// Generate runs one deterministic completion. Any API failure or empty response is a
// *models.ProviderError.
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.SetTemperature(0)
	model.SetMaxOutputTokens(g.maxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", models.NewProviderError("generation", err)
	}
	text, err := responseText(resp)
	if err != nil {
		g.logger.Warn("Gemini returned no usable text", zap.Error(err))
		return "", models.NewProviderError("generation", err)
	}
	return text, nil
}

// Close releases the client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("response had no text parts")
	}
	return out, nil
}
