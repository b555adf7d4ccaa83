package tools

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes model-supplied arguments into a struct tagged with
// `mapstructure`. Loose typing is allowed since models often send numbers
// as strings.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// requireString rejects empty or whitespace-only required arguments.
func requireString(name, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return v, nil
}

// Object builds a JSON Schema object with the given properties.
func Object(props map[string]any, required ...string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// String describes a string property.
func String(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Integer describes an integer property.
func Integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}
