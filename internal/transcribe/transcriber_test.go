package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/medscribe/internal/model"
)

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("Expected path /audio/transcriptions, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("Expected model whisper-1, got %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language en, got %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "RIFF....WAVE" || hdr.Filename != "visit.wav" {
			t.Errorf("unexpected upload %q (%d bytes)", hdr.Filename, len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  Patient reports headaches for two weeks.  "}`))
	}))
	defer server.Close()

	tr, err := NewOpenAITranscriber(Config{APIKey: "test-key", BaseURL: server.URL, Model: "whisper-1", Language: "en"})
	if err != nil {
		t.Fatalf("Failed to create transcriber: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), []byte("RIFF....WAVE"), "/tmp/recordings/visit.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Patient reports headaches for two weeks." {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestOpenAITranscriber_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid file format.", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	tr, _ := NewOpenAITranscriber(Config{APIKey: "test-key", BaseURL: server.URL})

	if _, err := tr.Transcribe(context.Background(), nil, "x.wav"); err == nil {
		t.Error("Expected error for empty audio")
	}
	if _, err := tr.Transcribe(context.Background(), []byte("junk"), "x.txt"); err == nil {
		t.Error("Expected API error")
	}
}

func TestNewTranscriber(t *testing.T) {
	if _, err := NewTranscriber(Config{Provider: "openai"}); err == nil {
		t.Error("Expected error without API key")
	}
	if _, err := NewTranscriber(Config{Provider: "deepgram", APIKey: "k"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
	tr, err := NewTranscriber(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewTranscriber failed: %v", err)
	}
	if tr.Name() != "openai" {
		t.Errorf("Name = %q", tr.Name())
	}
}

func TestConfigFromModel_ReusesLLMKey(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "shared"

	if got := ConfigFromModel(cfg).APIKey; got != "shared" {
		t.Errorf("APIKey = %q, want shared", got)
	}

	cfg.Transcription.APIKey = "own"
	if got := ConfigFromModel(cfg).APIKey; got != "own" {
		t.Errorf("APIKey = %q, want own", got)
	}

	cfg.Transcription.APIKey = ""
	cfg.LLM.Provider = "anthropic"
	if got := ConfigFromModel(cfg).APIKey; got != "" {
		t.Errorf("APIKey = %q, want empty for non-OpenAI extraction key", got)
	}
}
