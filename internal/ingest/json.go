package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONImporter handles .json exports from transcription tools.
type JSONImporter struct{}

// CanHandle returns true for JSON file extensions.
func (j *JSONImporter) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

// Import reads a JSON file holding ledger text. Accepted shapes:
//   - a string
//   - an array of strings, one per entry or page
//   - an object with a "text" field, or an array of such objects
//
// Entries are joined with blank lines so each starts a new block.
func (j *JSONImporter) Import(ctx context.Context, path string, opts Options) (*Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := readLimited(f, opts.maxSize())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return &Document{Source: absPath}, nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	parts, err := collectText(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Document{Text: strings.Join(parts, "\n\n"), Source: absPath, Bytes: int64(len(data))}, nil
}

func collectText(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case map[string]interface{}:
		s, ok := val["text"].(string)
		if !ok {
			return nil, fmt.Errorf("object has no string \"text\" field")
		}
		return []string{s}, nil
	case []interface{}:
		var out []string
		for i, elem := range val {
			parts, err := collectText(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, parts...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported JSON value %T", v)
}
