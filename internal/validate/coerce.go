package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/medscribe/internal/schema"
)

// numeric strings may carry a trailing unit, e.g. "170 cm" or "7.2mmol/L"
var numericPattern = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+))\s*[A-Za-z°/%]*$`)

var truthy = map[string]bool{
	"true": true, "yes": true, "y": true, "1": true,
	"false": false, "no": false, "n": false, "0": false,
}

// isMissing reports whether a decoded value counts as absent
func isMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

// coerce converts a present value to the field's declared kind.
// The returned reason is empty on success.
func coerce(f schema.FieldSpec, v any) (any, string) {
	switch f.Kind {
	case schema.KindNumber:
		return coerceNumber(v)
	case schema.KindBoolean:
		return coerceBool(v)
	case schema.KindString:
		return coerceString(v)
	case schema.KindEnum:
		s, reason := coerceString(v)
		if reason != "" {
			return nil, reason
		}
		for _, allowed := range f.Enum {
			if strings.EqualFold(s.(string), allowed) {
				return allowed, ""
			}
		}
		return nil, fmt.Sprintf("value %q is not one of: %s", s, strings.Join(f.Enum, ", "))
	}
	return nil, fmt.Sprintf("unsupported kind %q", f.Kind)
}

func coerceNumber(v any) (any, string) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Sprintf("invalid number %q", val)
		}
		return f, ""
	case float64:
		return val, ""
	case string:
		m := numericPattern.FindStringSubmatch(strings.TrimSpace(val))
		if m == nil {
			return nil, fmt.Sprintf("expected number, got %q", val)
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Sprintf("expected number, got %q", val)
		}
		return f, ""
	}
	return nil, fmt.Sprintf("expected number, got %s", typeName(v))
}

func coerceBool(v any) (any, string) {
	switch val := v.(type) {
	case bool:
		return val, ""
	case string:
		if b, ok := truthy[strings.ToLower(strings.TrimSpace(val))]; ok {
			return b, ""
		}
		return nil, fmt.Sprintf("expected boolean, got %q", val)
	case json.Number:
		switch val.String() {
		case "1":
			return true, ""
		case "0":
			return false, ""
		}
		return nil, fmt.Sprintf("expected boolean, got %s", val)
	case float64:
		switch val {
		case 1:
			return true, ""
		case 0:
			return false, ""
		}
	}
	return nil, fmt.Sprintf("expected boolean, got %s", typeName(v))
}

func coerceString(v any) (any, string) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), ""
	case json.Number:
		return val.String(), ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), ""
	case bool:
		return strconv.FormatBool(val), ""
	}
	return nil, fmt.Sprintf("expected string, got %s", typeName(v))
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
