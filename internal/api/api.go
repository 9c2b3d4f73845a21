// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/pipeline"
	"github.com/ppiankov/medscribe/internal/render"
	"github.com/ppiankov/medscribe/internal/store"
)

// maxAudioBytes bounds uploaded recordings (the whisper API limit)
const maxAudioBytes = 25 << 20

// Handler serves the HTTP API over a pipeline
type Handler struct {
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger

	projector *form.Projector
}

// NewHandler creates a handler over p
func NewHandler(p *pipeline.Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Pipeline: p, Logger: logger, projector: form.NewProjector(p.Registry())}
}

type errorBody struct {
	Code    errors.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message"`
	Path    string           `json:"path,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

func newErrorBody(err error) *errorBody {
	body := &errorBody{Code: errors.CodeOf(err), Message: err.Error()}
	var e *errors.Error
	if stderrors.As(err, &e) {
		body.Path = e.Path
		body.Reason = e.Reason
	}
	return body
}

// recordResponse is returned by the extraction endpoints whether or not the
// record was committed; fields always hold a renderable form
type recordResponse struct {
	RecordType string          `json:"record_type"`
	RecordID   string          `json:"record_id,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	Fields     form.FieldTuple `json:"fields"`
	Error      *errorBody      `json:"error,omitempty"`
}

func (h *Handler) respond(c *gin.Context, res *pipeline.Result, err error) {
	out := recordResponse{RecordType: res.RecordType, Fields: res.Fields, Cached: res.Cached}
	if out.Fields == nil {
		out.Fields = form.FieldTuple{}
	}
	if err != nil {
		out.Error = newErrorBody(err)
		c.JSON(errors.StatusOf(err), out)
		return
	}
	out.RecordID = res.Envelope.RecordID
	out.CreatedAt = &res.Envelope.CreatedAt
	c.JSON(http.StatusCreated, out)
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type schemaSummary struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Title   string `json:"title"`
	Prefix  string `json:"prefix"`
}

// ListSchemas handles GET /v1/schemas
func (h *Handler) ListSchemas(c *gin.Context) {
	registry := h.Pipeline.Registry()
	out := []schemaSummary{}
	for _, t := range registry.Types() {
		s, err := registry.Get(t)
		if err != nil {
			continue
		}
		out = append(out, schemaSummary{Type: s.Type(), Version: s.Version(), Title: s.Title(), Prefix: s.Prefix()})
	}
	c.JSON(http.StatusOK, out)
}

// GetSchema handles GET /v1/schemas/:type and returns the fields with the form layout
func (h *Handler) GetSchema(c *gin.Context) {
	s, err := h.Pipeline.Registry().Get(c.Param("type"))
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": newErrorBody(err)})
		return
	}
	layout, _ := form.Layout(s.Type())
	c.JSON(http.StatusOK, gin.H{
		"type":    s.Type(),
		"version": s.Version(),
		"title":   s.Title(),
		"prefix":  s.Prefix(),
		"fields":  s.Fields(),
		"layout":  layout,
	})
}

// Extract handles POST /v1/records/:type/extract with a JSON transcript body
func (h *Handler) Extract(c *gin.Context) {
	var input struct {
		Transcript string `json:"transcript"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}

	res, err := h.Pipeline.Process(c.Request.Context(), c.Param("type"), input.Transcript)
	h.respond(c, res, err)
}

// ExtractAudio handles POST /v1/records/:type/audio with a multipart "file" upload
func (h *Handler) ExtractAudio(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: "multipart field \"file\" is required"}})
		return
	}
	if fh.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errorBody{Message: "audio file exceeds 25 MB"}})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}
	defer func() { _ = f.Close() }()

	audio, err := io.ReadAll(io.LimitReader(f, maxAudioBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}

	res, err := h.Pipeline.ProcessAudio(c.Request.Context(), c.Param("type"), audio, fh.Filename)
	h.respond(c, res, err)
}

func listFilter(c *gin.Context) (store.ListFilter, error) {
	f := store.ListFilter{RecordType: c.Query("type"), Limit: 50}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, stderrors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, stderrors.New("since must be an RFC3339 timestamp")
		}
		f.Since = t
	}
	return f, nil
}

// ListRecords handles GET /v1/records, filtered by type, since and limit
func (h *Handler) ListRecords(c *gin.Context) {
	f, err := listFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}
	if f.RecordType != "" {
		if _, err := h.Pipeline.Registry().Get(f.RecordType); err != nil {
			c.JSON(errors.StatusOf(err), gin.H{"error": newErrorBody(err)})
			return
		}
	}

	envs, err := h.listEnvelopes(c.Request.Context(), f)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": newErrorBody(err)})
		return
	}
	if envs == nil {
		envs = []model.Envelope{}
	}
	c.JSON(http.StatusOK, envs)
}

// listEnvelopes reads the index when one is configured and scans disk otherwise
func (h *Handler) listEnvelopes(ctx context.Context, f store.ListFilter) ([]model.Envelope, error) {
	st := h.Pipeline.Store()
	if idx := st.Index(); idx != nil {
		envs, err := idx.List(ctx, f)
		if err != nil {
			return nil, errors.NewPersistence(err)
		}
		return envs, nil
	}

	all, err := st.Scan(f.RecordType)
	if err != nil {
		return nil, err
	}
	var out []model.Envelope
	for i := len(all) - 1; i >= 0; i-- {
		if !f.Since.IsZero() && all[i].CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, all[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (h *Handler) findEnvelope(ctx context.Context, id string) (*model.Envelope, error) {
	st := h.Pipeline.Store()
	if idx := st.Index(); idx != nil {
		env, err := idx.Get(ctx, id)
		if err == nil {
			rec, err := st.Load(env.Path)
			if err != nil {
				return nil, err
			}
			env.Record = rec
			return env, nil
		}
		if !stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewPersistence(err)
		}
	}

	all, err := st.Scan("")
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].RecordID == id {
			return &all[i], nil
		}
	}
	return nil, nil
}

// GetRecord handles GET /v1/envelopes/:id
func (h *Handler) GetRecord(c *gin.Context) {
	env, fields, ok := h.loadRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"envelope": env, "fields": fields})
}

// GetRecordHTML handles GET /v1/envelopes/:id/html
func (h *Handler) GetRecordHTML(c *gin.Context) {
	env, fields, ok := h.loadRecord(c)
	if !ok {
		return
	}
	title := env.RecordType
	if s, err := h.Pipeline.Registry().Get(env.RecordType); err == nil {
		title = s.Title()
	}
	page, err := render.HTML(render.Markdown(title, fields, env))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *Handler) loadRecord(c *gin.Context) (*model.Envelope, form.FieldTuple, bool) {
	id := c.Param("id")
	env, err := h.findEnvelope(c.Request.Context(), id)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": newErrorBody(err)})
		return nil, nil, false
	}
	if env == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{Message: "record not found: " + id}})
		return nil, nil, false
	}
	fields, err := h.projector.Project(env.Record, "", env.RecordType)
	if err != nil {
		c.JSON(errors.StatusOf(err), gin.H{"error": newErrorBody(err)})
		return nil, nil, false
	}
	return env, fields, true
}

// ListAudit handles GET /v1/audit. It needs the index and answers 501 without one.
func (h *Handler) ListAudit(c *gin.Context) {
	idx := h.Pipeline.Store().Index()
	if idx == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": errorBody{Message: "record index is disabled"}})
		return
	}
	f, err := listFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}
	entries, err := idx.ListAudit(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Message: err.Error()}})
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
