// internal/llm/jsonout.go
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/validation"
)

var ErrUnparseable = errors.New("LLM_OUTPUT_UNPARSEABLE")

// UnparseableError carries the raw model output that failed to decode.
type UnparseableError struct {
	Raw    string
	Reason string
}

func (e *UnparseableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnparseable, e.Reason)
}

func (e *UnparseableError) Unwrap() error { return ErrUnparseable }

// StripFences removes a surrounding markdown code fence such as ```json ... ```.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string (e.g. "json")
		if !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON validates model output against schema and unmarshals it into out.
// Every failure is reported as *UnparseableError.
func DecodeJSON(raw string, schema *validation.Schema, out interface{}) error {
	body := StripFences(raw)
	if body == "" {
		return &UnparseableError{Raw: raw, Reason: "empty output"}
	}

	res, err := schema.ValidateBytes([]byte(body))
	if err != nil {
		return &UnparseableError{Raw: raw, Reason: err.Error()}
	}
	if !res.Valid {
		return &UnparseableError{Raw: raw, Reason: res.Error()}
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &UnparseableError{Raw: raw, Reason: err.Error()}
	}
	return nil
}
