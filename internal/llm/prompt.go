package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nao1215/magicscraper/internal/model"
)

// BuildPrompt assembles the extraction instruction for one page.
//
// The prompt embeds the page content, the values gathered so far (when any
// field is set) and the exact list of keys the reply must contain.
func BuildPrompt(content string, existing model.Record, fields []string) string {
	var b strings.Builder

	b.WriteString("Given the following website content:\n---\n")
	b.WriteString(content)
	b.WriteString("\n---\n")

	if len(existing) > 0 {
		b.WriteString("We have already gathered some information:\n---\n")
		b.WriteString(orderedJSON(existing, fields))
		b.WriteString("\n---\n")
		b.WriteString("Please use the new website content to update or complete this information, ")
		b.WriteString("especially focusing on any fields currently marked as \"")
		b.WriteString(model.NotFound)
		b.WriteString("\" or improving existing entries.\n")
	}

	b.WriteString("Please extract or update the following information about the company and provide it in JSON format.\n")
	b.WriteString("The JSON object should have the following keys: ")
	b.WriteString(keyList(fields))
	b.WriteString(".\n")
	b.WriteString("If any information cannot be found in the current content or the existing information, use \"")
	b.WriteString(model.NotFound)
	b.WriteString("\" as the value for the corresponding key.\n")
	b.WriteString("Ensure the output is a single, valid JSON object.")

	return b.String()
}

// orderedJSON renders the requested fields of r as an indented JSON object
// whose keys follow the field order.
func orderedJSON(r model.Record, fields []string) string {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, field := range fields {
		value, ok := r[field]
		if !ok {
			value = model.NotFound
		}
		key, _ := json.Marshal(field)
		val, _ := json.Marshal(value)
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(fields)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

// Truncate shortens content to at most limit runes. A non-positive limit
// disables truncation.
func Truncate(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

// keyList renders fields as a JSON array with ", " separators, for example
// ["phone_number", "email"].
func keyList(fields []string) string {
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		b, err := json.Marshal(f)
		if err != nil {
			continue
		}
		quoted = append(quoted, string(b))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
