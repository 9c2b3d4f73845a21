package pipeline

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ppiankov/medscribe/internal/llm"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *model.Config {
	dir := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.IndexPath = filepath.Join(dir, "data", "index.db")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	return cfg
}

func TestNewFromConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	p, closer, err := NewFromConfig(cfg, logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, closer()) }()

	require.IsType(t, &llm.CachingExtractor{}, p.extractor)
	require.Equal(t, "ollama", p.extractor.Name())
	require.NotNil(t, p.Store().Index())
	require.Equal(t, cfg.Storage.DataDir, p.Store().DataDir())

	// No OpenAI key: audio input is disabled rather than failing startup
	require.Nil(t, p.transcriber)
}

func TestNewFromConfig_NoCacheNoIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	cfg.Storage.IndexPath = ""
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"

	p, closer, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, closer())

	require.IsType(t, &llm.OpenAIExtractor{}, p.extractor)
	require.Nil(t, p.Store().Index())
	require.NotNil(t, p.transcriber)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "gemini"

	_, _, err := NewFromConfig(cfg, nil)
	require.Error(t, err)
}
