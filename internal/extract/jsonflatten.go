package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

// maxJSONDepth bounds how deep the flattener descends; anything nested
// further is dropped and flagged in metadata.
const maxJSONDepth = 10

type jsonFrame struct {
	key   string
	value any
	depth int
}

// extractJSON flattens every string/number/boolean leaf into a
// "key: value" context line. Traversal runs on an explicit work stack
// with a depth counter, keeping stack usage flat on pathological input.
func extractJSON(data []byte) (*models.Extraction, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, core.NewExtractionError("json", fmt.Errorf("parse json: %w", err))
	}

	var (
		lines     []string
		truncated bool
	)

	stack := []jsonFrame{{value: root}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := frame.value.(type) {
		case map[string]any:
			if frame.depth >= maxJSONDepth {
				truncated = true
				continue
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			// push in reverse so the stack pops keys in sorted order
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, jsonFrame{
					key:   joinKey(frame.key, keys[i]),
					value: v[keys[i]],
					depth: frame.depth + 1,
				})
			}
		case []any:
			if frame.depth >= maxJSONDepth {
				truncated = true
				continue
			}
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, jsonFrame{
					key:   fmt.Sprintf("%s[%d]", frame.key, i),
					value: v[i],
					depth: frame.depth + 1,
				})
			}
		case string:
			lines = append(lines, leafLine(frame.key, v))
		case json.Number:
			lines = append(lines, leafLine(frame.key, v.String()))
		case bool:
			lines = append(lines, leafLine(frame.key, fmt.Sprintf("%t", v)))
		case nil:
			// null leaves carry no searchable content
		}
	}

	metadata := map[string]any{}
	if truncated {
		metadata["truncated"] = true
	}

	return &models.Extraction{
		Content:  strings.Join(lines, "\n"),
		Metadata: metadata,
	}, nil
}

func joinKey(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func leafLine(key, value string) string {
	if key == "" {
		return value
	}
	return key + ": " + value
}
