package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the primitive kind of a field
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindObject  Kind = "object"
)

// Format refines how a string leaf is represented
type Format string

const (
	FormatNone Format = ""
	FormatDate Format = "date" // YYYY-MM-DD
)

// Reserved top-level names owned by the persistence layer
var reservedNames = map[string]bool{
	"createdAt":     true,
	"recordId":      true,
	"recordType":    true,
	"schemaVersion": true,
}

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// FieldSpec declares one field of a record schema
type FieldSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Path        string      `json:"path" yaml:"path"` // dotted path, assigned at registration
	Kind        Kind        `json:"kind" yaml:"kind"`
	Enum        []string    `json:"enum,omitempty" yaml:"enum,omitempty"`
	Optional    bool        `json:"optional" yaml:"optional"`
	Unit        string      `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Computed    bool        `json:"computed,omitempty" yaml:"computed,omitempty"`
	Format      Format      `json:"format,omitempty" yaml:"format,omitempty"`
	Children    []FieldSpec `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether the field holds a value rather than nested fields
func (f FieldSpec) IsLeaf() bool {
	return f.Kind != KindObject
}

// Definition is the declarative input used to publish a schema
type Definition struct {
	Type    string
	Version int
	Prefix  string // record id prefix, e.g. "REV"
	Title   string
	Fields  []FieldSpec
}

// Schema is a published, immutable record schema.
// All accessors return copies.
type Schema struct {
	recordType string
	version    int
	prefix     string
	title      string
	fields     []FieldSpec
	leaves     []FieldSpec
	byPath     map[string]FieldSpec
}

func newSchema(def Definition) (*Schema, error) {
	if strings.TrimSpace(def.Type) == "" {
		return nil, fmt.Errorf("schema type is required")
	}
	if def.Version < 1 {
		return nil, fmt.Errorf("schema %s: version must be >= 1", def.Type)
	}
	if !prefixPattern.MatchString(def.Prefix) {
		return nil, fmt.Errorf("schema %s: invalid id prefix %q", def.Type, def.Prefix)
	}
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("schema %s: no fields declared", def.Type)
	}

	s := &Schema{
		recordType: def.Type,
		version:    def.Version,
		prefix:     def.Prefix,
		title:      def.Title,
		byPath:     make(map[string]FieldSpec),
	}

	for _, f := range def.Fields {
		if reservedNames[f.Name] {
			return nil, fmt.Errorf("schema %s: field name %q is reserved", def.Type, f.Name)
		}
	}

	fields, err := s.bind(def.Fields, "")
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", def.Type, err)
	}
	s.fields = fields

	return s, nil
}

// bind deep-copies fields, assigns paths and indexes leaves in declaration order
func (s *Schema) bind(fields []FieldSpec, parent string) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(fields))
	seen := make(map[string]bool)

	for _, f := range fields {
		if f.Name == "" || strings.Contains(f.Name, ".") {
			return nil, fmt.Errorf("invalid field name %q under %q", f.Name, parent)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q under %q", f.Name, parent)
		}
		seen[f.Name] = true

		f.Path = f.Name
		if parent != "" {
			f.Path = parent + "." + f.Name
		}
		f.Enum = append([]string(nil), f.Enum...)

		switch f.Kind {
		case KindObject:
			if len(f.Children) == 0 {
				return nil, fmt.Errorf("object %s has no children", f.Path)
			}
			children, err := s.bind(f.Children, f.Path)
			if err != nil {
				return nil, err
			}
			f.Children = children
		case KindEnum:
			if len(f.Enum) == 0 {
				return nil, fmt.Errorf("enum %s has no allowed values", f.Path)
			}
			f.Children = nil
		case KindString, KindNumber, KindBoolean:
			f.Children = nil
		default:
			return nil, fmt.Errorf("field %s has unknown kind %q", f.Path, f.Kind)
		}

		if f.IsLeaf() {
			s.leaves = append(s.leaves, f)
		}
		s.byPath[f.Path] = f
		out = append(out, f)
	}

	return out, nil
}

// Type returns the record type identifier
func (s *Schema) Type() string { return s.recordType }

// Version returns the schema version
func (s *Schema) Version() int { return s.version }

// Prefix returns the record id prefix
func (s *Schema) Prefix() string { return s.prefix }

// Title returns the human-readable title
func (s *Schema) Title() string { return s.title }

// Fields returns a copy of the top-level field tree
func (s *Schema) Fields() []FieldSpec {
	return cloneFields(s.fields)
}

// Leaves returns every leaf depth-first in declaration order
func (s *Schema) Leaves() []FieldSpec {
	return cloneFields(s.leaves)
}

// Field looks up a leaf or object by dotted path
func (s *Schema) Field(path string) (FieldSpec, bool) {
	f, ok := s.byPath[path]
	if !ok {
		return FieldSpec{}, false
	}
	return cloneField(f), true
}

// Definition returns a copy of the declaration the schema was built from
func (s *Schema) Definition() Definition {
	return Definition{
		Type:    s.recordType,
		Version: s.version,
		Prefix:  s.prefix,
		Title:   s.title,
		Fields:  s.Fields(),
	}
}

func cloneFields(fields []FieldSpec) []FieldSpec {
	out := make([]FieldSpec, len(fields))
	for i, f := range fields {
		out[i] = cloneField(f)
	}
	return out
}

func cloneField(f FieldSpec) FieldSpec {
	f.Enum = append([]string(nil), f.Enum...)
	if f.Children != nil {
		f.Children = cloneFields(f.Children)
	}
	return f
}
