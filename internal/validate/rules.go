package validate

import (
	"math"
	"strings"
	"time"

	"github.com/ppiankov/medscribe/internal/model"
	"github.com/ppiankov/medscribe/internal/schema"
)

// Stage orders normalization rules. Stages always run in this order.
type Stage int

const (
	StageUnits    Stage = iota // numeric unit conversions
	StageComputed              // derived values
	StageFormat                // identifier and format canonicalization
	StageTemporal              // values derived from the processing time
)

func (s Stage) String() string {
	switch s {
	case StageUnits:
		return "units"
	case StageComputed:
		return "computed"
	case StageFormat:
		return "format"
	case StageTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// Rule is one pure, idempotent transformation over a record's leaves
type Rule struct {
	Name  string
	Stage Stage
	Apply func(rec *model.Record, now time.Time)
}

// DefaultRules returns the normalization rules for the built-in record types
func DefaultRules() map[string][]Rule {
	return map[string][]Rule{
		schema.TypeMedicalReview: {
			MetersToCentimeters("biometrics.height"),
			BMI("biometrics.height", "biometrics.weight", "biometrics.bmi"),
		},
		schema.TypeScreening: {
			ConvertUnit("vitals.heightIn", "vitals.heightCm", 2.54, 1),
			ConvertUnit("vitals.weightLb", "vitals.weightKg", 0.45359237, 1),
			BMI("vitals.heightCm", "vitals.weightKg", "vitals.bmi"),
			Prefix("patientId", "PT-"),
			DateFormat("history.lastScreeningDate"),
			ElapsedDays("history.lastScreeningDate", "history.daysSinceLastScreening"),
		},
	}
}

// Heights in [minMetres, maxMetres] are read as metres. The converted value is
// always above maxMetres, so a second pass leaves it alone.
const (
	minMetres = 0.3
	maxMetres = 3
)

// MetersToCentimeters rewrites a height stated in metres (0.3 <= h <= 3) as centimetres
func MetersToCentimeters(path string) Rule {
	return Rule{
		Name:  "m-to-cm:" + path,
		Stage: StageUnits,
		Apply: func(rec *model.Record, _ time.Time) {
			h, ok := rec.Number(path)
			if !ok || h < minMetres || h > maxMetres {
				return
			}
			rec.Set(path, round(h*100, 1))
		},
	}
}

// ConvertUnit fills `to` from `from` scaled by factor, only when `to` is empty
func ConvertUnit(from, to string, factor float64, decimals int) Rule {
	return Rule{
		Name:  "convert:" + from + "->" + to,
		Stage: StageUnits,
		Apply: func(rec *model.Record, _ time.Time) {
			if _, ok := rec.Number(to); ok {
				return
			}
			v, ok := rec.Number(from)
			if !ok {
				return
			}
			rec.Set(to, round(v*factor, decimals))
		},
	}
}

// BMI computes weight(kg) / height(m)^2 rounded to 2 decimals.
// When either input is absent the output is cleared.
func BMI(heightCmPath, weightKgPath, out string) Rule {
	return Rule{
		Name:  "bmi:" + out,
		Stage: StageComputed,
		Apply: func(rec *model.Record, _ time.Time) {
			h, okH := rec.Number(heightCmPath)
			w, okW := rec.Number(weightKgPath)
			if !okH || !okW || h <= 0 {
				rec.Set(out, nil)
				return
			}
			m := h / 100
			rec.Set(out, round(w/(m*m), 2))
		},
	}
}

// Prefix ensures a string identifier carries exactly one copy of prefix
func Prefix(path, prefix string) Rule {
	return Rule{
		Name:  "prefix:" + path,
		Stage: StageFormat,
		Apply: func(rec *model.Record, _ time.Time) {
			s, ok := rec.String(path)
			if !ok || s == "" {
				return
			}
			rec.Set(path, canonicalPrefix(s, prefix))
		},
	}
}

func canonicalPrefix(s, prefix string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, prefix) {
		return s
	}
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return prefix + s[len(prefix):]
	}
	return prefix + s
}

// DateFormat rewrites a parseable date as YYYY-MM-DD; unparseable values are kept
func DateFormat(path string) Rule {
	return Rule{
		Name:  "date:" + path,
		Stage: StageFormat,
		Apply: func(rec *model.Record, _ time.Time) {
			s, ok := rec.String(path)
			if !ok {
				return
			}
			if t, ok := parseDate(s); ok {
				rec.Set(path, t.Format(dateLayout))
			}
		},
	}
}

// ElapsedDays sets out to the whole days between the date at ref and now.
// out is cleared when ref is absent, unparseable or in the future.
func ElapsedDays(ref, out string) Rule {
	return Rule{
		Name:  "elapsed-days:" + out,
		Stage: StageTemporal,
		Apply: func(rec *model.Record, now time.Time) {
			s, ok := rec.String(ref)
			if !ok {
				rec.Set(out, nil)
				return
			}
			t, ok := parseDate(s)
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			if !ok || t.After(today) {
				rec.Set(out, nil)
				return
			}
			rec.Set(out, math.Floor(today.Sub(t).Hours()/24))
		},
	}
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
