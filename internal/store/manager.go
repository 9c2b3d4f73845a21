// Package store assigns record identity and persists envelopes.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/ppiankov/medscribe/internal/codec"
	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
)

const (
	idLayout   = "20060102150405"
	fileLayout = "20060102_150405"
	auditDir   = "_audit"

	// maxSequence bounds same-second collisions per record type
	maxSequence = 99
)

// Manager commits validated records to the data directory
type Manager struct {
	dataDir  string
	registry *schema.Registry
	index    *Index
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entropy io.Reader
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithIndex mirrors every envelope and audit entry into idx
func WithIndex(idx *Index) ManagerOption {
	return func(m *Manager) { m.index = idx }
}

// WithClock sets the clock used for createdAt and audit ids
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager rooted at dataDir. Directories are created on first write.
func NewManager(dataDir string, registry *schema.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		dataDir:  dataDir,
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DataDir returns the root of the record namespace
func (m *Manager) DataDir() string {
	return m.dataDir
}

// Index returns the configured index, or nil
func (m *Manager) Index() *Index {
	return m.index
}

// Commit assigns createdAt and recordId to rec and writes its envelope.
// On failure rec is left untouched and the commit can be retried.
func (m *Manager) Commit(ctx context.Context, rec *model.Record, recordType string) (*model.Envelope, error) {
	if rec == nil {
		return nil, errors.NewPersistence(fmt.Errorf("nil record"))
	}
	if rec.IsCommitted() {
		return nil, errors.NewPersistence(fmt.Errorf("record %s is already committed", rec.RecordID))
	}
	if rec.Type != recordType {
		return nil, errors.NewPersistence(fmt.Errorf("record type %q does not match %q", rec.Type, recordType))
	}

	s, err := m.registry.GetVersion(recordType, rec.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewPersistence(err)
	}

	dir := filepath.Join(m.dataDir, recordType)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewPersistence(fmt.Errorf("create %s: %w", dir, err))
	}

	createdAt := m.now().Truncate(time.Second)
	baseID := s.Prefix() + "_" + createdAt.Format(idLayout)
	baseName := recordType + "_" + createdAt.Format(fileLayout)

	for seq := 1; seq <= maxSequence; seq++ {
		id, name := baseID, baseName
		if seq > 1 {
			suffix := fmt.Sprintf("_%02d", seq)
			id += suffix
			name += suffix
		}

		candidate := rec.Clone()
		candidate.CreatedAt = createdAt
		candidate.RecordID = id

		data, err := codec.Encode(s, candidate)
		if err != nil {
			return nil, errors.NewPersistence(err)
		}

		path := filepath.Join(dir, name+".json")
		err = writeExclusive(dir, path, data)
		if os.IsExist(err) {
			m.logger.Debug("record id taken, retrying", "record_id", id)
			continue
		}
		if err != nil {
			return nil, errors.NewPersistence(err)
		}

		rec.CreatedAt = createdAt
		rec.RecordID = id
		env := &model.Envelope{
			RecordID:      id,
			RecordType:    recordType,
			SchemaVersion: rec.SchemaVersion,
			CreatedAt:     createdAt,
			Path:          path,
			Record:        rec,
		}
		m.indexRecord(ctx, env)
		m.logger.Info("record committed", "record_id", id, "path", path)
		return env, nil
	}

	return nil, errors.NewPersistence(fmt.Errorf("no free record id for %s after %d attempts", baseID, maxSequence))
}

// writeExclusive publishes data at path via a hidden temp file and a hard
// link, so path either does not exist or holds the complete document.
// Returns an error satisfying os.IsExist when path is already taken.
func writeExclusive(dir, path string, data []byte) error {
	tmp, err := writeTemp(dir, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".pending-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

func (m *Manager) indexRecord(ctx context.Context, env *model.Envelope) {
	if m.index == nil {
		return
	}
	if err := m.index.PutRecord(ctx, env); err != nil {
		m.logger.Warn("index update failed", "record_id", env.RecordID, "error", err)
	}
}

// Load reads an envelope file back into a committed record
func (m *Manager) Load(path string) (*model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPersistence(err)
	}
	rec, err := codec.Decode(m.registry, data)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Scan lists the envelopes stored on disk for recordType (all types when
// empty), oldest first. Unreadable files are skipped with a warning.
func (m *Manager) Scan(recordType string) ([]model.Envelope, error) {
	types := []string{recordType}
	if recordType == "" {
		types = m.registry.Types()
	}

	var out []model.Envelope
	for _, t := range types {
		dir := filepath.Join(m.dataDir, t)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.NewPersistence(err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
				continue
			}
			path := filepath.Join(dir, name)
			rec, err := m.Load(path)
			if err != nil {
				m.logger.Warn("skipping unreadable envelope", "path", path, "error", err)
				continue
			}
			out = append(out, model.Envelope{
				RecordID:      rec.RecordID,
				RecordType:    rec.Type,
				SchemaVersion: rec.SchemaVersion,
				CreatedAt:     rec.CreatedAt,
				Path:          path,
				Record:        rec,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out, nil
}

// Reindex rebuilds the index rows for every envelope on disk
func (m *Manager) Reindex(ctx context.Context) (int, error) {
	if m.index == nil {
		return 0, fmt.Errorf("no index configured")
	}
	envs, err := m.Scan("")
	if err != nil {
		return 0, err
	}
	for i := range envs {
		if err := m.index.PutRecord(ctx, &envs[i]); err != nil {
			return i, err
		}
	}
	return len(envs), nil
}

// Audit retains a failed extraction under the audit directory.
// ID and CreatedAt are assigned here.
func (m *Manager) Audit(ctx context.Context, entry *model.AuditEntry) error {
	now := m.now()

	m.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), m.entropy)
	m.mu.Unlock()
	if err != nil {
		return errors.NewPersistence(fmt.Errorf("generate audit id: %w", err))
	}

	entry.ID = id.String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.Truncate(time.Second)
	}

	dir := filepath.Join(m.dataDir, auditDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewPersistence(err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.NewPersistence(err)
	}

	tmp, err := writeTemp(dir, data)
	if err != nil {
		return errors.NewPersistence(err)
	}
	path := filepath.Join(dir, entry.ID+".json")
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.NewPersistence(err)
	}

	if m.index != nil {
		if err := m.index.PutAudit(ctx, entry); err != nil {
			m.logger.Warn("audit index update failed", "id", entry.ID, "error", err)
		}
	}
	m.logger.Info("extraction failure retained", "id", entry.ID, "code", entry.Code)
	return nil
}
