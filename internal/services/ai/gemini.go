package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the default Gemini vision model
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrEmptyCandidates is returned when Gemini produced no candidate content
var ErrEmptyCandidates = errors.New("no content generated")

// GeminiProvider implements Provider using the Google Generative AI API
type GeminiProvider struct {
	client    *genai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewGeminiProvider creates a client authenticated with an API key
func NewGeminiProvider(ctx context.Context, apiKey, model string, logger *zap.Logger, debugMode bool) (*GeminiProvider, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}, nil
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Generate sends the request and returns the text of the first candidate
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	model := p.client.GenerativeModel(p.model)
	configureModel(model, req)

	requestID := ExtractRequestID(ctx)
	sessionID := ExtractSessionID(ctx)
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", "gemini"),
			zap.String("operation", req.Operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(req.Prompt)),
			zap.Bool("has_image", req.Image != nil),
			zap.String("prompt_preview", SanitizePrompt(req.Prompt, true)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, geminiParts(req)...)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", "gemini"),
				zap.String("operation", req.Operation),
				zap.Error(err),
				zap.String("session_id", sessionID),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("gemini %s: %w", req.Operation, apiErr)
		}
		return "", fmt.Errorf("gemini %s: %w", req.Operation, err)
	}

	content, err := geminiText(resp)
	if err != nil {
		return "", err
	}
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", "gemini"),
			zap.String("operation", req.Operation),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}

func configureModel(model *genai.GenerativeModel, req Request) {
	model.SetTemperature(0.1)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
}

// geminiParts orders the prompt text before the image
func geminiParts(req Request) []genai.Part {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.ImageData(req.Image.Format(), req.Image.Data))
	}
	return parts
}

// geminiText joins the text parts of the first candidate
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCandidates
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// RegisterGemini registers the Gemini provider with the registry
func RegisterGemini(registry *ProviderRegistry) {
	registry.Register("gemini", func(ctx context.Context, config map[string]string, logger *zap.Logger) (Provider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("gemini api_key is required")
		}
		return NewGeminiProvider(ctx, apiKey, config["model"], logger, config["debug"] == "true")
	})
}
