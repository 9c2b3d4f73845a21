package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128", "localhost, .internal,10.0.0.5:11434")

	tests := []struct {
		url  string
		want string
	}{
		{"https://api.openai.com/v1/chat/completions", "http://secure-proxy:3128"},
		{"http://example.com/", "http://proxy:3128"},
		{"http://localhost:11434/api/generate", ""},
		{"http://gpu.internal:11434/api/tags", ""},
		{"http://internal/", ""},
		{"http://10.0.0.5:11434/api/generate", ""},
		{"http://notinternal.com/", "http://proxy:3128"},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		u, err := proxy(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.url, err)
		}
		got := ""
		if u != nil {
			got = u.String()
		}
		if got != tt.want {
			t.Errorf("%s: proxy = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewProxyFunc_Wildcard(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "", "*")
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if u, _ := proxy(req); u != nil {
		t.Errorf("expected direct connection, got %v", u)
	}
}

func TestNewProxyFunc_HTTPSFallsBackToHTTPProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "", "")
	req, _ := http.NewRequest(http.MethodGet, "https://api.anthropic.com/v1/messages", nil)
	u, err := proxy(req)
	if err != nil || u == nil || u.String() != "http://proxy:3128" {
		t.Errorf("expected http proxy, got %v (%v)", u, err)
	}
}
