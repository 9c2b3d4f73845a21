package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/medscribe/internal/errors"
)

// parseObject decodes raw extraction output into a key-value tree.
// A single surrounding Markdown code fence is tolerated; anything else that
// is not exactly one JSON object is malformed.
func parseObject(rawText string) (map[string]any, error) {
	text := stripFence(strings.TrimSpace(rawText))
	if text == "" {
		return nil, errors.NewMalformedResponse(fmt.Errorf("empty response"))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, errors.NewMalformedResponse(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewMalformedResponse(fmt.Errorf("trailing data after JSON object"))
	}

	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, errors.NewMalformedResponse(fmt.Errorf("top-level value is %T, not an object", tree))
	}
	return obj, nil
}

// stripFence removes a ```json ... ``` wrapper if present
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := text[3 : len(text)-3]
	// Drop the info string (e.g. "json") on the opening line
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if first := strings.TrimSpace(inner[:nl]); first == "" || !strings.ContainsAny(first, "{[") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
