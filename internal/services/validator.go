package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrValidation can be used with errors.Is to detect payload validation
// failures.
var ErrValidation = errors.New("validation failed")

// Validator hard-rejects task payloads against per-type JSON Schemas before
// any task row or job is created.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator loads all *.json files from schemaDir and compiles one input
// schema per task type, keyed by file name (analyze.json -> "analyze").
func NewValidator(ctx context.Context, schemaDir string) (*Validator, error) {
	_ = ctx
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}

	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		taskType := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		id := "https://pathwise.dev/schemas/" + taskType + ".input"
		schemas[taskType], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", taskType, err)
		}
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in %q", schemaDir)
	}
	return &Validator{schemas: schemas}, nil
}

// ValidateInput returns ErrValidation (wrapped with detail) when payload does
// not match the task type's schema.
func (v *Validator) ValidateInput(ctx context.Context, taskType string, payload json.RawMessage) error {
	schema, ok := v.schemas[taskType]
	if !ok {
		return fmt.Errorf("no schema for task type %q", taskType)
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
