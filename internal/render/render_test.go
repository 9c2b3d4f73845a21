package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/medscribe/internal/form"
	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
)

func reviewFields(t *testing.T, transcript string) form.FieldTuple {
	t.Helper()
	s, err := schema.Default().Get(schema.TypeMedicalReview)
	require.NoError(t, err)

	rec := model.NewRecord(s.Type(), s.Version())
	rec.Set("diagnosis", "Hypertension | stage 1")
	rec.Set("biometrics.height", 170.0)
	rec.Set("biometrics.bmi", 24.22)

	fields, err := form.Project(rec, transcript, schema.TypeMedicalReview)
	require.NoError(t, err)
	return fields
}

func TestMarkdown(t *testing.T) {
	env := &model.Envelope{
		RecordID:      "REV_20240115093000",
		CreatedAt:     time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		SchemaVersion: 1,
	}
	out := string(Markdown("Medical Review", reviewFields(t, "Doctor: how are you?\nPatient: tired."), env))

	require.True(t, strings.HasPrefix(out, "# Medical Review\n"))
	require.Contains(t, out, "`REV_20240115093000`")
	require.Contains(t, out, "2024-01-15T09:30:00Z")
	require.Contains(t, out, `| Diagnosis | Hypertension \| stage 1 |`)
	require.Contains(t, out, "| Height (cm) | 170 |")
	require.Contains(t, out, "| BMI | 24.22 |")
	require.Contains(t, out, "| Weight (kg) | - |")
	require.Contains(t, out, "> Doctor: how are you?\n> Patient: tired.\n")
	require.Contains(t, out, "```json\n{")
}

func TestMarkdown_Defaults(t *testing.T) {
	fields, err := form.Project(nil, "", schema.TypeMedicalReview)
	require.NoError(t, err)

	out := string(Markdown("Medical Review", fields, nil))
	require.NotContains(t, out, "Record ID")
	require.NotContains(t, out, "## Transcript")
	require.NotContains(t, out, "## Extracted Data")
	require.Contains(t, out, "| Smoking Status | Never |")
}

func TestHTML(t *testing.T) {
	src := Markdown("Medical Review", reviewFields(t, "<script>alert(1)</script>"), nil)

	out, err := HTML(src)
	require.NoError(t, err)

	html := string(out)
	require.Contains(t, html, "<h1>Medical Review</h1>")
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<td>170</td>")
	require.NotContains(t, html, "<script>")
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "Yes", formatValue(true))
	require.Equal(t, "No", formatValue(false))
	require.Equal(t, "-", formatValue(nil))
	require.Equal(t, "-", formatValue(""))
	require.Equal(t, "36.6", formatValue(36.6))
	require.Equal(t, "3", formatValue(3))
}
