package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/medscribe/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAITranscriber uses the audio transcriptions endpoint (Whisper)
type OpenAITranscriber struct {
	client *openai.Client
	config Config
}

// NewOpenAITranscriber creates a new OpenAI transcription backend
func NewOpenAITranscriber(config Config) (*OpenAITranscriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for transcription")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the backend name
func (t *OpenAITranscriber) Name() string {
	return "openai"
}

// Transcribe uploads audio and returns the recognized text
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	model := t.config.Model
	if model == "" {
		model = openai.Whisper1
	}

	timeout := time.Duration(t.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := t.client.CreateTranscription(ctxWithTimeout, openai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(audio),
		FilePath: filepath.Base(filename),
		Language: t.config.Language,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription error: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
