package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/medscribe/internal/cache"
	"github.com/ppiankov/medscribe/internal/llm"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/store"
	"github.com/ppiankov/medscribe/internal/transcribe"
)

// NewFromConfig wires a pipeline from configuration. The returned close
// function releases the record index.
func NewFromConfig(cfg *model.Config, logger *slog.Logger, opts ...Option) (*Pipeline, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := schema.Default()

	extractor, err := llm.NewExtractor(llm.ConfigFromModel(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("create extractor: %w", err)
	}
	if cfg.Cache.Enabled {
		c := cache.New(cfg.Cache.Dir, cfg.Cache.MemoryTTL, cfg.Cache.DiskTTL)
		extractor = llm.NewCachingExtractor(extractor, c, cfg.LLM.Model, cfg.Cache.DiskTTL)
	}

	st, closer, err := OpenStore(cfg, registry, logger)
	if err != nil {
		return nil, nil, err
	}

	all := []Option{WithLogger(logger)}
	if t, err := transcribe.NewTranscriber(transcribe.ConfigFromModel(cfg)); err != nil {
		logger.Warn("audio input disabled", "error", err)
	} else {
		all = append(all, WithTranscriber(t))
	}
	all = append(all, opts...)

	return New(registry, extractor, st, all...), closer, nil
}

// OpenStore opens the record store and, when configured, its index
func OpenStore(cfg *model.Config, registry *schema.Registry, logger *slog.Logger) (*store.Manager, func() error, error) {
	closer := func() error { return nil }
	opts := []store.ManagerOption{store.WithLogger(logger)}
	if cfg.Storage.IndexPath != "" {
		idx, err := store.OpenIndex(cfg.Storage.IndexPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open index: %w", err)
		}
		opts = append(opts, store.WithIndex(idx))
		closer = idx.Close
	}
	return store.NewManager(cfg.Storage.DataDir, registry, opts...), closer, nil
}
