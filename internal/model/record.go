package model

import (
	"sort"
	"time"
)

// Record is a validated, normalized instance of a record schema.
// Values are keyed by dotted leaf path and hold nil, string, float64 or bool.
type Record struct {
	Type          string         `json:"recordType"`
	SchemaVersion int            `json:"schemaVersion"`
	Values        map[string]any `json:"values"`

	// Assigned once at commit; zero until then
	CreatedAt time.Time `json:"createdAt,omitempty"`
	RecordID  string    `json:"recordId,omitempty"`
}

// NewRecord creates an empty, uncommitted record
func NewRecord(recordType string, schemaVersion int) *Record {
	return &Record{
		Type:          recordType,
		SchemaVersion: schemaVersion,
		Values:        make(map[string]any),
	}
}

// Get returns the value at path; ok is false when the path is unset
func (r *Record) Get(path string) (any, bool) {
	v, ok := r.Values[path]
	return v, ok
}

// Set stores a value at path
func (r *Record) Set(path string, value any) {
	r.Values[path] = value
}

// Number returns the float64 at path, if present and non-null
func (r *Record) Number(path string) (float64, bool) {
	f, ok := r.Values[path].(float64)
	return f, ok
}

// String returns the string at path, if present and non-null
func (r *Record) String(path string) (string, bool) {
	s, ok := r.Values[path].(string)
	return s, ok
}

// IsCommitted reports whether identity has been assigned
func (r *Record) IsCommitted() bool {
	return r.RecordID != ""
}

// Paths returns the set paths, sorted
func (r *Record) Paths() []string {
	paths := make([]string, 0, len(r.Values))
	for p := range r.Values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a copy that shares no mutable state with r
func (r *Record) Clone() *Record {
	c := *r
	c.Values = make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return &c
}

// Equal compares two records field-for-field, including identity
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Type != other.Type || r.SchemaVersion != other.SchemaVersion || r.RecordID != other.RecordID {
		return false
	}
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if len(r.Values) != len(other.Values) {
		return false
	}
	for k, v := range r.Values {
		ov, ok := other.Values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
