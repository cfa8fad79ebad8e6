package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeFunc normalizes raw file contents to the JSON payload written into
// the target signal.
type DecodeFunc func(data []byte) (json.RawMessage, error)

// DecodeRaw treats the file as a plain string, with surrounding whitespace
// trimmed so trailing editor newlines do not register as changes.
func DecodeRaw(data []byte) (json.RawMessage, error) {
	return json.Marshal(string(bytes.TrimSpace(data)))
}

// DecodeJSON passes the file through unchanged after a validity check.
func DecodeJSON(data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	return json.RawMessage(data), nil
}

// DecodeYAML parses the file as YAML and re-encodes it as JSON.
func DecodeYAML(data []byte) (json.RawMessage, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml value not representable as JSON: %w", err)
	}
	return out, nil
}

// DecoderFor maps a config format name to its DecodeFunc. Unknown names
// fall back to DecodeJSON.
func DecoderFor(format string) DecodeFunc {
	switch format {
	case "raw":
		return DecodeRaw
	case "yaml", "yml":
		return DecodeYAML
	default:
		return DecodeJSON
	}
}
