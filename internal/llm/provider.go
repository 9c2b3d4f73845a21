package llm

import (
	"context"

	"github.com/ppiankov/medscribe/internal/prompt"
)

// Extractor defines the interface for structured-extraction services
type Extractor interface {
	// Name returns the provider name
	Name() string

	// Extract sends an extraction prompt and returns the raw response text.
	// Implementations always request deterministic (temperature 0) JSON output.
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExtractRequest contains the prompt for one extraction call
type ExtractRequest struct {
	// System carries the schema skeleton and extraction rules
	System string

	// User carries the transcript
	User string

	// Model overrides the configured model (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ExtractResponse contains the provider's raw output
type ExtractResponse struct {
	// Text is the response body as returned, expected to be a JSON object
	Text string `json:"text"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"tokens_used"`

	// Cached is set when the response was served from cache
	Cached bool `json:"-"`
}

// RequestFromPrompt converts a built prompt into an extraction request
func RequestFromPrompt(p *prompt.ExtractionPrompt) ExtractRequest {
	return ExtractRequest{
		System: p.System,
		User:   p.User,
	}
}

// Config holds extraction provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   60,
		MaxTokens: 1500,
	}
}

func (c Config) maxTokens(req ExtractRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1500
}
