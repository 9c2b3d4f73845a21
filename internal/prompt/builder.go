package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/medscribe/internal/errors"
	"github.com/ppiankov/medscribe/internal/schema"
)

// ExtractionPrompt is the instruction payload sent to the extraction service
type ExtractionPrompt struct {
	RecordType    string `json:"record_type"`
	SchemaVersion int    `json:"schema_version"`
	System        string `json:"system"`
	User          string `json:"user"`
}

// Build constructs the extraction prompt for a transcript. It is pure and
// deterministic: the same schema and transcript always yield the same prompt.
func Build(s *schema.Schema, transcript string) (*ExtractionPrompt, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, errors.NewEmptyTranscript()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a clinical documentation assistant. Extract %s information from the interview transcript and return a JSON object that matches exactly this structure:\n", describeTitle(s))
	b.WriteString(Skeleton(s))
	b.WriteString(`

CRITICAL RULES:
1. Only extract information explicitly stated in the transcript. Do not infer or guess.
2. Use null for any field that is not mentioned.
3. Dates must be written as YYYY-MM-DD.
4. Numbers must be bare numerals in the unit shown for the field, with no unit text.
5. Booleans must be true or false.
6. Enumerated fields must use one of the listed values exactly.
7. Fields marked "computed" are derived automatically; leave them null unless the value is stated.
8. Fields marked "required" must be filled if the transcript states them at all.
9. Respond with the JSON object only: no commentary, no code fences.`)

	user := fmt.Sprintf("Extract %s data from this transcript and format it according to the structure shown above.\n\nTranscript:\n%s", describeTitle(s), transcript)

	return &ExtractionPrompt{
		RecordType:    s.Type(),
		SchemaVersion: s.Version(),
		System:        b.String(),
		User:          user,
	}, nil
}

// Skeleton renders the schema as an annotated JSON shape in declaration order
func Skeleton(s *schema.Schema) string {
	var b strings.Builder
	writeObject(&b, s.Fields(), 0)
	return b.String()
}

func writeObject(b *strings.Builder, fields []schema.FieldSpec, depth int) {
	indent := strings.Repeat("  ", depth+1)
	b.WriteString("{\n")
	for i, f := range fields {
		fmt.Fprintf(b, "%s%q: ", indent, f.Name)
		if f.Kind == schema.KindObject {
			writeObject(b, f.Children, depth+1)
		} else {
			desc, _ := json.Marshal(describe(f))
			b.Write(desc)
		}
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}")
}

// describe returns the type hint for a leaf, e.g. "number (in cm)"
func describe(f schema.FieldSpec) string {
	var base string
	switch f.Kind {
	case schema.KindNumber:
		base = "number"
	case schema.KindBoolean:
		base = "boolean"
	case schema.KindEnum:
		base = "string"
	default:
		base = "string"
	}

	var notes []string
	if f.Unit != "" {
		notes = append(notes, "in "+f.Unit)
	}
	if f.Format == schema.FormatDate {
		notes = append(notes, "YYYY-MM-DD")
	}
	if f.Kind == schema.KindEnum {
		notes = append(notes, "must be one of: "+strings.Join(f.Enum, ", "))
	}
	if f.Description != "" {
		notes = append(notes, f.Description)
	}
	if f.Computed {
		notes = append(notes, "computed")
	}
	if !f.Optional {
		notes = append(notes, "required")
	}

	if len(notes) == 0 {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, strings.Join(notes, "; "))
}

func describeTitle(s *schema.Schema) string {
	if s.Title() != "" {
		return strings.ToLower(s.Title())
	}
	return strings.ReplaceAll(s.Type(), "_", " ")
}
