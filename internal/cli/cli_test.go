package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/pipeline"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/store"
	"github.com/ppiankov/medscribe/internal/worker"
)

func TestApplyProviderEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
		"OLLAMA_BASE_URL":   "http://gpu:11434",
	}
	getenv := func(k string) string { return env[k] }

	cfg := model.DefaultConfig()
	applyProviderEnv(cfg, getenv)
	require.Equal(t, "sk-openai", cfg.LLM.APIKey)
	require.Equal(t, "sk-openai", cfg.Transcription.APIKey)

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "claude"
	applyProviderEnv(cfg, getenv)
	require.Equal(t, "sk-ant", cfg.LLM.APIKey)

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	applyProviderEnv(cfg, getenv)
	require.Empty(t, cfg.LLM.APIKey)
	require.Equal(t, "http://gpu:11434", cfg.LLM.BaseURL)

	// Explicit configuration wins
	cfg = model.DefaultConfig()
	cfg.LLM.APIKey = "from-config"
	applyProviderEnv(cfg, getenv)
	require.Equal(t, "from-config", cfg.LLM.APIKey)
}

func TestRedact(t *testing.T) {
	require.Equal(t, "", redact(""))
	require.Equal(t, "****", redact("short"))
	require.Equal(t, "sk-a****wxyz", redact("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".medscribe", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "# Medscribe Configuration File"))

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 4, cfg.Concurrency.Workers)

	require.Error(t, writeDefaultConfig(path), "existing config must not be overwritten")
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "visit-one_2", sanitizeFilename("visit one:2"))
	require.Len(t, sanitizeFilename(strings.Repeat("a", 150)), 100)
}

func TestOutputName(t *testing.T) {
	committed := &worker.FileResult{
		Path:   "/in/a.txt",
		Result: &pipeline.Result{Envelope: &model.Envelope{RecordID: "REV_20240115093000"}},
	}
	require.Equal(t, "REV_20240115093000", outputName(committed))

	failed := &worker.FileResult{Path: "/in/visit 2.txt", Result: &pipeline.Result{}}
	require.Equal(t, "failed_visit-2", outputName(failed))
}

func TestListEnvelopes_ScanFallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	st := store.NewManager(t.TempDir(), schema.Default(),
		store.WithLogger(logger),
		store.WithClock(func() time.Time { return now }),
	)

	s, err := schema.Default().Get(schema.TypeMedicalReview)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rec := model.NewRecord(s.Type(), s.Version())
		rec.Set("diagnosis", "Asthma")
		_, err := st.Commit(context.Background(), rec, schema.TypeMedicalReview)
		require.NoError(t, err)
	}

	envs, err := listEnvelopes(context.Background(), st, store.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, "REV_20240115093000_03", envs[0].RecordID)

	env, err := findRecord(context.Background(), st, "REV_20240115093000_02")
	require.NoError(t, err)
	require.FileExists(t, env.Path)

	_, err = findRecord(context.Background(), st, "REV_nope")
	require.Error(t, err)
}
