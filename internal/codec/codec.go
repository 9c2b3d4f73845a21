// Package codec serializes records to and from their persisted JSON form.
//
// Leaves are nested under their object fields in schema declaration order,
// followed by the identity keys recordType, schemaVersion, createdAt and
// recordId. encoding/json sorts map keys, so the document is assembled here
// and only scalars go through json.Marshal.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
	"github.com/ppiankov/medscribe/internal/validate"
)

const indent = "  "

// Encode renders rec in schema declaration order with two-space indentation.
// Identity keys are written only once the record is committed.
func Encode(s *schema.Schema, rec *model.Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil record")
	}
	if rec.Type != s.Type() || rec.SchemaVersion != s.Version() {
		return nil, fmt.Errorf("record %s@v%d does not match schema %s@v%d",
			rec.Type, rec.SchemaVersion, s.Type(), s.Version())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	n, err := writeFields(&buf, s.Fields(), rec)
	if err != nil {
		return nil, err
	}

	meta := []struct {
		key   string
		value any
		skip  bool
	}{
		{"recordType", rec.Type, false},
		{"schemaVersion", rec.SchemaVersion, false},
		{"createdAt", rec.CreatedAt.Format(time.RFC3339), !rec.IsCommitted()},
		{"recordId", rec.RecordID, !rec.IsCommitted()},
	}
	for _, m := range meta {
		if m.skip {
			continue
		}
		if err := writeMember(&buf, n, m.key, m.value); err != nil {
			return nil, err
		}
		n++
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", indent); err != nil {
		return nil, fmt.Errorf("indent record: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeFields(buf *bytes.Buffer, fields []schema.FieldSpec, rec *model.Record) (int, error) {
	n := 0
	for _, f := range fields {
		if n > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, f.Name); err != nil {
			return n, err
		}

		if f.Kind == schema.KindObject {
			buf.WriteByte('{')
			if _, err := writeFields(buf, f.Children, rec); err != nil {
				return n, err
			}
			buf.WriteByte('}')
		} else {
			v, _ := rec.Get(f.Path)
			b, err := json.Marshal(v)
			if err != nil {
				return n, fmt.Errorf("encode %s: %w", f.Path, err)
			}
			buf.Write(b)
		}
		n++
	}
	return n, nil
}

func writeMember(buf *bytes.Buffer, n int, key string, value any) error {
	if n > 0 {
		buf.WriteByte(',')
	}
	if err := writeKey(buf, key); err != nil {
		return err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.Write(b)
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

// envelopeHeader holds the identity keys of a persisted record
type envelopeHeader struct {
	RecordType    string `json:"recordType"`
	SchemaVersion int    `json:"schemaVersion"`
	CreatedAt     string `json:"createdAt"`
	RecordID      string `json:"recordId"`
}

// Decode parses a persisted envelope back into a committed record, using the
// schema version named in the document.
func Decode(registry *schema.Registry, data []byte) (*model.Record, error) {
	var hdr envelopeHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if hdr.RecordType == "" {
		return nil, fmt.Errorf("decode envelope: missing recordType")
	}
	if hdr.RecordID == "" {
		return nil, fmt.Errorf("decode envelope: missing recordId")
	}

	s, err := registry.GetVersion(hdr.RecordType, hdr.SchemaVersion)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(time.RFC3339, hdr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: createdAt: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	rec, err := validate.Conform(s, tree)
	if err != nil {
		return nil, fmt.Errorf("decode envelope %s: %w", hdr.RecordID, err)
	}
	rec.CreatedAt = createdAt
	rec.RecordID = hdr.RecordID
	return rec, nil
}
