package utils

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("missing json object")

// DecodeJSONObject extracts the outermost {...} block from model output, which is
// often wrapped in prose or code fences, and decodes it into v.
func DecodeJSONObject(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ErrNoJSONObject
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), v)
}
