package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pathwise/backend/internal/models"
)

func schemasDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "schemas")
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(context.Background(), schemasDir(t))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidatorLoadsAllTaskTypes(t *testing.T) {
	v := newTestValidator(t)
	for taskType := range models.TaskCosts {
		if _, ok := v.schemas[taskType]; !ok {
			t.Errorf("missing schema for task type %q", taskType)
		}
	}
}

func TestValidateInput_Analyze_Valid(t *testing.T) {
	v := newTestValidator(t)

	payload := json.RawMessage(`{"resume":{"name":"Ada"},"job_description":"Senior Go engineer at Acme"}`)
	if err := v.ValidateInput(context.Background(), models.TaskTypeAnalyze, payload); err != nil {
		t.Fatalf("expected valid analyze payload, got: %v", err)
	}
}

func TestValidateInput_Analyze_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name    string
		payload string
	}{
		{"missing resume", `{"job_description":"Senior Go engineer at Acme"}`},
		{"job description too short", `{"resume":{},"job_description":"short"}`},
		{"unknown field", `{"resume":{},"job_description":"Senior Go engineer","surprise":true}`},
		{"not even JSON", `{"resume":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateInput(context.Background(), models.TaskTypeAnalyze, json.RawMessage(tc.payload))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidateInput_PrepGuide(t *testing.T) {
	v := newTestValidator(t)

	valid := json.RawMessage(`{"guide_id":"7c9e2f1a-4b8d-4e0f-9a36-51c2d8b7e4a0","company":"Acme"}`)
	if err := v.ValidateInput(context.Background(), models.TaskTypePrepGuide, valid); err != nil {
		t.Fatalf("expected valid prep_guide payload, got: %v", err)
	}

	missing := json.RawMessage(`{"company":"Acme"}`)
	if err := v.ValidateInput(context.Background(), models.TaskTypePrepGuide, missing); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for missing guide_id, got: %v", err)
	}
}

func TestValidateInput_UnknownType(t *testing.T) {
	v := newTestValidator(t)
	if err := v.ValidateInput(context.Background(), "summon_dragon", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown task type")
	}
}
