package validate

import (
	"sort"
	"time"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
)

// Validator turns raw extraction output into validated, normalized records
type Validator struct {
	registry *schema.Registry
	rules    map[string][]Rule
	now      func() time.Time
}

// Option configures a Validator
type Option func(*Validator)

// WithClock sets the clock used by temporal rules
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithRules replaces the rules registered for a record type
func WithRules(recordType string, rules ...Rule) Option {
	return func(v *Validator) {
		v.rules[recordType] = rules
	}
}

// NewValidator creates a validator over the given registry with the default rules
func NewValidator(registry *schema.Registry, opts ...Option) *Validator {
	v := &Validator{
		registry: registry,
		rules:    DefaultRules(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	for t, rules := range v.rules {
		v.rules[t] = ordered(rules)
	}
	return v
}

// ordered returns rules sorted by stage, keeping registration order within a stage
func ordered(rules []Rule) []Rule {
	out := append([]Rule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Validate parses rawText, checks it against the latest schema for
// recordType and returns the normalized record. The record has no identity yet.
func (v *Validator) Validate(recordType, rawText string) (*model.Record, error) {
	s, err := v.registry.Get(recordType)
	if err != nil {
		return nil, err
	}

	tree, err := parseObject(rawText)
	if err != nil {
		return nil, err
	}

	rec, err := Conform(s, tree)
	if err != nil {
		return nil, err
	}

	if err := v.Normalize(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Conform walks every leaf of s in declaration order and builds a record
// from tree. Keys not declared in the schema are dropped.
func Conform(s *schema.Schema, tree map[string]any) (*model.Record, error) {
	rec := model.NewRecord(s.Type(), s.Version())
	if err := conformFields(rec, s.Fields(), tree, true); err != nil {
		return nil, err
	}
	return rec, nil
}

func conformFields(rec *model.Record, fields []schema.FieldSpec, node map[string]any, present bool) error {
	for _, f := range fields {
		var raw any
		if present {
			raw = node[f.Name]
		}

		if f.Kind == schema.KindObject {
			child, isObj := raw.(map[string]any)
			if raw != nil && !isObj {
				return errors.NewSchemaViolation(f.Path, "expected object, got "+typeName(raw))
			}
			if err := conformFields(rec, f.Children, child, isObj); err != nil {
				return err
			}
			continue
		}

		if isMissing(raw) {
			if !f.Optional {
				return errors.NewSchemaViolation(f.Path, "required field is missing")
			}
			rec.Set(f.Path, nil)
			continue
		}

		val, reason := coerce(f, raw)
		if reason != "" {
			return errors.NewSchemaViolation(f.Path, reason)
		}
		rec.Set(f.Path, val)
	}
	return nil
}

// Normalize applies the record type's rules in stage order. Running it on an
// already-normalized record yields the same record.
func (v *Validator) Normalize(rec *model.Record) error {
	if _, err := v.registry.Get(rec.Type); err != nil {
		return err
	}
	now := v.now()
	for _, rule := range v.rules[rec.Type] {
		rule.Apply(rec, now)
	}
	return nil
}

// Rules returns the ordered rules for a record type
func (v *Validator) Rules(recordType string) []Rule {
	return append([]Rule(nil), v.rules[recordType]...)
}
