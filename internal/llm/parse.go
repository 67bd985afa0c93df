package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/magicscraper/internal/model"
)

// thinkRegex matches the reasoning block some models emit before answering.
var thinkRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ParseRecord decodes a model reply into a record holding exactly the
// requested fields.
//
// Reasoning blocks, markdown code fences and any text after the first
// object are ignored.
// Missing keys, nulls, blank strings and any spelling of "not found" all
// become model.NotFound. Numbers and booleans are formatted as text, lists
// are joined with ", " and nested objects are kept as compact JSON.
func ParseRecord(reply string, fields []string) (model.Record, error) {
	text := thinkRegex.ReplaceAllString(reply, "")

	raw, err := firstObject(text)
	if err != nil {
		return nil, err
	}

	record := model.NewRecord(fields)
	for _, field := range fields {
		v, ok := raw[field]
		if !ok {
			continue
		}
		record[field] = coerce(v)
	}
	return record, nil
}

// firstObject decodes the first JSON object found in text. Anything after
// the object is ignored, and a brace that does not open a valid object is
// skipped.
func firstObject(text string) (map[string]any, error) {
	var firstErr error
	for offset := 0; ; {
		i := strings.IndexByte(text[offset:], '{')
		if i < 0 {
			break
		}
		start := offset + i

		var raw map[string]any
		err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		offset = start + 1
	}

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoJSONObject, firstErr)
	}
	return nil, ErrNoJSONObject
}

// coerce turns an arbitrary JSON value into a cell value.
func coerce(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return model.NotFound
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if c := coerce(item); c != model.NotFound {
				parts = append(parts, c)
			}
		}
		s = strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return model.NotFound
		}
		s = string(b)
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, model.NotFound) {
		return model.NotFound
	}
	return s
}
