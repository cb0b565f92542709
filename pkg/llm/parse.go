package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when the model output contains no JSON object at all.
var ErrNoJSON = errors.New("no JSON object in response")

// ParseResult is the outcome of decoding structured model output. Either the
// payload passed to DecodeJSON was filled in (OK), or decoding failed and Raw
// keeps the original text so callers can fall back without re-reading the
// response.
type ParseResult struct {
	OK  bool
	Raw string
	Err error
}

// DecodeJSON extracts the first JSON object from raw model output and decodes
// it into v. Models frequently wrap JSON in prose or code fences, so the
// object is located by brace scanning rather than decoded directly.
func DecodeJSON(raw string, v interface{}) ParseResult {
	jsonContent := ExtractJSON(raw)
	if jsonContent == "" {
		return ParseResult{OK: false, Raw: raw, Err: ErrNoJSON}
	}

	if err := json.Unmarshal([]byte(jsonContent), v); err != nil {
		return ParseResult{OK: false, Raw: raw, Err: err}
	}

	return ParseResult{OK: true, Raw: raw}
}

// ExtractJSON returns the outermost {...} block of a response, or "".
func ExtractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
