package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resume-workflow/internal/shared/telemetry"
)

// Validatable is implemented by structured outputs with their own rules.
type Validatable interface {
	Validate() error
}

const fixJSONPrompt = `The previous answer was not valid for the required JSON schema.
Problems:
%s

Return only a corrected JSON object that satisfies this schema:
%s

Previous answer:
%s`

// Structured asks client for a JSON object matching schema and decodes it
// into out. One repair round is attempted when the first answer is not
// usable; the second failure is returned.
func Structured(ctx context.Context, client Client, prompt, schema string, out any) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)

	raw, err := client.CompleteJSON(ctx, prompt)
	if err != nil {
		return err
	}
	problems := decodeStructured(raw, schemaLoader, out)
	if problems == nil {
		return nil
	}

	telemetry.Warn("llm.structured_retry", map[string]any{
		"reason": problems.Error(),
	})
	raw, err = client.CompleteJSON(ctx, fmt.Sprintf(fixJSONPrompt, problems.Error(), schema, raw))
	if err != nil {
		return err
	}
	return decodeStructured(raw, schemaLoader, out)
}

func decodeStructured(raw string, schemaLoader gojsonschema.JSONLoader, out any) error {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return ErrNoStructuredResult
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(obj))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if v, ok := out.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
	}
	return nil
}

// ExtractJSONObject returns the outermost JSON object in raw, tolerating
// markdown fences and prose around it.
func ExtractJSONObject(raw string) ([]byte, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := []byte(trimmed[start : end+1])
	if !json.Valid(candidate) {
		return nil, false
	}
	return candidate, true
}
