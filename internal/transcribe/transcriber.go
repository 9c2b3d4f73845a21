// Package transcribe converts recorded interview audio to text.
package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/medscribe/internal/model"
)

// Transcriber is a pluggable speech-to-text backend
type Transcriber interface {
	// Name returns the backend name
	Name() string

	// Transcribe returns the text spoken in audio. filename carries the
	// container format hint (e.g. "visit.wav").
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Config holds transcription backend configuration
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Language string // ISO-639-1 hint; empty lets the service detect it
	Timeout  int    // seconds

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// NewTranscriber creates a transcription backend based on configuration
func NewTranscriber(config Config) (Transcriber, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "whisper", "":
		return NewOpenAITranscriber(config)
	default:
		return nil, fmt.Errorf("unknown transcription provider: %s (supported: openai)", config.Provider)
	}
}

// ConfigFromModel converts the application config to transcribe.Config.
// The LLM API key is reused when no transcription key is set.
func ConfigFromModel(cfg *model.Config) Config {
	apiKey := cfg.Transcription.APIKey
	if apiKey == "" && strings.EqualFold(cfg.LLM.Provider, "openai") {
		apiKey = cfg.LLM.APIKey
	}
	return Config{
		Provider:   cfg.Transcription.Provider,
		Model:      cfg.Transcription.Model,
		APIKey:     apiKey,
		BaseURL:    cfg.Transcription.BaseURL,
		Language:   cfg.Transcription.Language,
		Timeout:    cfg.Transcription.Timeout,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
}
