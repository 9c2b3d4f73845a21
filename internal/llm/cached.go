package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/medscribe/internal/cache"
)

// CachingExtractor memoizes responses of a zero-temperature extractor
type CachingExtractor struct {
	next  Extractor
	cache cache.Cache
	model string
	ttl   time.Duration
}

// NewCachingExtractor wraps next; model names the configured model so keys
// differ across model changes
func NewCachingExtractor(next Extractor, c cache.Cache, model string, ttl time.Duration) *CachingExtractor {
	return &CachingExtractor{next: next, cache: c, model: model, ttl: ttl}
}

// Name returns the wrapped provider name
func (e *CachingExtractor) Name() string {
	return e.next.Name()
}

// IsAvailable delegates to the wrapped provider
func (e *CachingExtractor) IsAvailable(ctx context.Context) bool {
	return e.next.IsAvailable(ctx)
}

// Extract serves a cached response when one exists, otherwise calls through
// and caches the result. Failed calls are never cached.
func (e *CachingExtractor) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	model := req.Model
	if model == "" {
		model = e.model
	}
	key := cache.ExtractionKey(e.next.Name(), model, req.System, req.User)

	if data, ok := e.cache.Get(key); ok {
		var resp ExtractResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			slog.Debug("extraction cache hit", "provider", e.next.Name(), "model", model)
			return &resp, nil
		}
		_ = e.cache.Delete(key)
	}

	resp, err := e.next.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := e.cache.Set(key, data, e.ttl); err != nil {
			slog.Warn("extraction cache write failed", "error", err)
		}
	}
	return resp, nil
}
