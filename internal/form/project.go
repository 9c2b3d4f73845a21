// Package form projects records onto the positional field layout consumed by
// the presentation layer.
package form

import (
	"github.com/ppiankov/medscribe/internal/codec"
	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
)

// Field is one projected form value
type Field struct {
	FieldDef
	Choices []string `json:"choices,omitempty"`
	Value   any      `json:"value"`
}

// FieldTuple is the ordered set of form values for one record type
type FieldTuple []Field

// Values returns just the field values, in layout order
func (t FieldTuple) Values() []any {
	out := make([]any, len(t))
	for i, f := range t {
		out[i] = f.Value
	}
	return out
}

// Get returns the field with the given name
func (t FieldTuple) Get(name string) (Field, bool) {
	for _, f := range t {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Projector maps records to form tuples using a schema registry
type Projector struct {
	registry *schema.Registry
}

// NewProjector creates a projector over registry
func NewProjector(registry *schema.Registry) *Projector {
	return &Projector{registry: registry}
}

// Project maps rec onto the layout of recordType using the default registry.
// A nil rec yields every field's default plus the transcript.
func Project(rec *model.Record, transcript, recordType string) (FieldTuple, error) {
	return NewProjector(schema.Default()).Project(rec, transcript, recordType)
}

// Project maps rec onto the layout of recordType. It fails only for an
// unknown record type.
func (p *Projector) Project(rec *model.Record, transcript, recordType string) (FieldTuple, error) {
	defs, ok := layouts[recordType]
	if !ok {
		return nil, errors.NewUnknownRecordType(recordType)
	}
	s, err := p.registry.Get(recordType)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.Type != recordType {
		rec = nil
	}

	out := make(FieldTuple, len(defs))
	for i, d := range defs {
		f := Field{FieldDef: d}
		if d.Widget == WidgetChoice {
			spec, _ := s.Field(d.Path)
			f.Choices = append([]string(nil), spec.Enum...)
		}
		f.Value = p.value(s, rec, transcript, f)
		out[i] = f
	}
	return out, nil
}

func (p *Projector) value(s *schema.Schema, rec *model.Record, transcript string, f Field) any {
	switch f.Widget {
	case WidgetTranscript:
		return transcript
	case WidgetJSON:
		if rec == nil {
			return ""
		}
		if rs, err := p.schemaFor(s, rec); err == nil {
			if data, err := codec.Encode(rs, rec); err == nil {
				return string(data)
			}
		}
		return ""
	}

	if rec != nil {
		if v, _ := rec.Get(f.Path); v != nil {
			return v
		}
	}
	return defaultFor(f)
}

// schemaFor returns the schema version matching rec, which may predate s
func (p *Projector) schemaFor(s *schema.Schema, rec *model.Record) (*schema.Schema, error) {
	if rec.SchemaVersion == s.Version() {
		return s, nil
	}
	return p.registry.GetVersion(rec.Type, rec.SchemaVersion)
}

// defaultFor returns the value a field shows when the record has none
func defaultFor(f Field) any {
	switch f.Widget {
	case WidgetNumber:
		return nil
	case WidgetChoice:
		if len(f.Choices) > 0 {
			return f.Choices[0]
		}
		return ""
	case WidgetCheckbox:
		return false
	default:
		return ""
	}
}
