package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Provider is the interface for multimodal AI providers
type Provider interface {
	// Generate sends one prompt, optionally with an image, and returns the raw text response
	Generate(ctx context.Context, req Request) (string, error)
}

// Image is an image attached to a request
type Image struct {
	MIMEType string
	Data     []byte
}

// Format returns the short format name ("png", "jpeg") of the MIME type
func (i *Image) Format() string {
	return strings.TrimPrefix(i.MIMEType, "image/")
}

// Request is one call to the AI capability
type Request struct {
	// Operation names the call in logs and errors ("analyze_image", "recommend_outfit")
	Operation string
	System    string
	Prompt    string
	Image     *Image
	// JSON asks the provider for a JSON object response when it supports it
	JSON bool
}

// ProviderFactory creates an AI provider from string settings
// (api_key, model, base_url, debug)
type ProviderFactory func(ctx context.Context, config map[string]string, logger *zap.Logger) (Provider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// NewDefaultRegistry returns a registry with the OpenAI and Gemini providers
func NewDefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r)
	RegisterGemini(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Names lists the registered providers
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(ctx context.Context, name string, config map[string]string, logger *zap.Logger) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	provider, err := factory(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	return provider, nil
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f
func (f ProviderFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
