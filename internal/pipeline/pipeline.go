// Package pipeline runs one interview through transcription, extraction,
// validation, persistence and form projection.
package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"unicode/utf8"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/llm"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/prompt"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/store"
	"github.com/ppiankov/medscribe/internal/transcribe"
	"github.com/ppiankov/medscribe/internal/validate"
)

// logTranscriptRunes bounds how much transcript text reaches the logs
const logTranscriptRunes = 120

// RateLimiter throttles calls to an external service identified by key
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// Pipeline orchestrates one extraction invocation
type Pipeline struct {
	registry    *schema.Registry
	extractor   llm.Extractor
	transcriber transcribe.Transcriber // nil disables audio input
	validator   *validate.Validator
	store       *store.Manager
	projector   *form.Projector
	limiter     RateLimiter
	logger      *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTranscriber enables audio input
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithValidator replaces the default validator (e.g. to inject a clock)
func WithValidator(v *validate.Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithLimiter throttles extraction calls per provider
func WithLimiter(l RateLimiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline from its collaborators
func New(registry *schema.Registry, extractor llm.Extractor, st *store.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:  registry,
		extractor: extractor,
		store:     st,
		projector: form.NewProjector(registry),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		p.validator = validate.NewValidator(registry)
	}
	return p
}

// Registry returns the schema registry the pipeline validates against
func (p *Pipeline) Registry() *schema.Registry {
	return p.registry
}

// Store returns the persistence manager
func (p *Pipeline) Store() *store.Manager {
	return p.store
}

// Result is the outcome of one invocation. Fields is always populated for a
// known record type: from the record when one was validated, with defaults
// otherwise. A record that failed to persist is kept in Record so the caller
// can retry the write. Err carries the structured failure.
type Result struct {
	RecordType string          `json:"record_type"`
	Transcript string          `json:"transcript"`
	Record     *model.Record   `json:"-"`
	Envelope   *model.Envelope `json:"envelope,omitempty"`
	Fields     form.FieldTuple `json:"fields"`
	Cached     bool            `json:"cached,omitempty"`
	Err        error           `json:"-"`
}

// OK reports whether the record was committed
func (r *Result) OK() bool {
	return r.Err == nil && r.Envelope != nil
}

// Process extracts, validates and commits a record from transcript.
// The returned error is the same as Result.Err.
func (p *Pipeline) Process(ctx context.Context, recordType, transcript string) (*Result, error) {
	res := &Result{RecordType: recordType, Transcript: transcript}

	rec, env, err := p.run(ctx, res, recordType, transcript)
	if err != nil {
		res.Record = rec
		p.fail(ctx, res, err)
		return res, err
	}

	res.Record = rec
	res.Envelope = env
	res.Fields, _ = p.projector.Project(rec, transcript, recordType)
	p.logger.Info("record extracted",
		"record_type", recordType,
		"record_id", env.RecordID,
		"cached", res.Cached,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res *Result, recordType, transcript string) (*model.Record, *model.Envelope, error) {
	s, err := p.registry.Get(recordType)
	if err != nil {
		return nil, nil, err
	}

	pr, err := prompt.Build(s, transcript)
	if err != nil {
		return nil, nil, err
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, p.extractor.Name()); err != nil {
			return nil, nil, errors.NewExtractionFailed(err)
		}
	}

	resp, err := p.extractor.Extract(ctx, llm.RequestFromPrompt(pr))
	if err != nil {
		return nil, nil, errors.NewExtractionFailed(err)
	}
	res.Cached = resp.Cached
	p.logger.Debug("extraction response received",
		"record_type", recordType,
		"model", resp.Model,
		"tokens", resp.TokensUsed,
		"cached", resp.Cached,
	)

	rec, err := p.validator.Validate(recordType, resp.Text)
	if err != nil {
		return nil, nil, err
	}

	env, err := p.store.Commit(ctx, rec, recordType)
	if err != nil {
		return rec, nil, err
	}
	return rec, env, nil
}

// fail logs the failure, retains the transcript for audit and projects
// res.Record, which is nil unless validation succeeded
func (p *Pipeline) fail(ctx context.Context, res *Result, err error) {
	res.Err = err
	res.Fields, _ = p.projector.Project(res.Record, res.Transcript, res.RecordType)

	attrs := []any{
		"record_type", res.RecordType,
		"code", errors.CodeOf(err),
		"transcript", truncate(res.Transcript, logTranscriptRunes),
		"error", err,
	}
	var e *errors.Error
	if stderrors.As(err, &e) && e.Path != "" {
		attrs = append(attrs, "path", e.Path, "reason", e.Reason)
	}
	p.logger.Error("extraction failed", attrs...)

	if !auditable(err) {
		return
	}
	entry := &model.AuditEntry{
		RecordType: res.RecordType,
		Code:       string(errors.CodeOf(err)),
		Message:    err.Error(),
		Transcript: res.Transcript,
	}
	if e != nil {
		entry.Path = e.Path
		entry.Reason = e.Reason
	}
	if aerr := p.store.Audit(ctx, entry); aerr != nil {
		p.logger.Warn("audit write failed", "error", aerr)
	}
}

// auditable reports whether a failure leaves a transcript worth retaining
func auditable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrExtractionFailed, errors.ErrMalformedResponse, errors.ErrSchemaViolation, errors.ErrPersistence:
		return true
	}
	return false
}

// ProcessAudio transcribes audio and processes the transcript. A failed
// transcription is logged and treated as an empty transcript.
func (p *Pipeline) ProcessAudio(ctx context.Context, recordType string, audio []byte, filename string) (*Result, error) {
	return p.Process(ctx, recordType, p.Transcribe(ctx, audio, filename))
}

// Transcribe returns the transcript of audio, or "" when transcription is
// unavailable or fails
func (p *Pipeline) Transcribe(ctx context.Context, audio []byte, filename string) string {
	if p.transcriber == nil {
		p.logger.Warn("audio received but no transcriber is configured", "file", filename)
		return ""
	}
	text, err := p.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		p.logger.Error("transcription failed", "file", filename, "provider", p.transcriber.Name(), "error", err)
		return ""
	}
	p.logger.Debug("transcription complete", "file", filename, "runes", utf8.RuneCountInString(text))
	return text
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
