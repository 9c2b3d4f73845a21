// Package render formats projected forms for people: Markdown for files and
// terminals, HTML for the web view.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/model"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders a projected form. env may be nil for records that were
// never committed.
func Markdown(title string, fields form.FieldTuple, env *model.Envelope) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s\n\n", title)
	if env != nil {
		fmt.Fprintf(&b, "- **Record ID:** `%s`\n", env.RecordID)
		fmt.Fprintf(&b, "- **Created:** %s\n", env.CreatedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- **Schema version:** %d\n\n", env.SchemaVersion)
	}

	b.WriteString("| Field | Value |\n")
	b.WriteString("|---|---|\n")
	var transcript, extracted string
	for _, f := range fields {
		switch f.Widget {
		case form.WidgetTranscript:
			transcript, _ = f.Value.(string)
			continue
		case form.WidgetJSON:
			extracted, _ = f.Value.(string)
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(f.Label), escapeCell(formatValue(f.Value)))
	}

	if extracted != "" {
		b.WriteString("\n## Extracted Data\n\n```json\n")
		b.WriteString(strings.TrimRight(extracted, "\n"))
		b.WriteString("\n```\n")
	}

	if strings.TrimSpace(transcript) != "" {
		b.WriteString("\n## Transcript\n\n")
		for _, line := range strings.Split(strings.TrimSpace(transcript), "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.Bytes()
}

// HTML converts Markdown to an HTML fragment. Raw HTML in the input is dropped.
func HTML(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
