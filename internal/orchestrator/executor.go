package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pathwise/backend/internal/ai"
	"github.com/pathwise/backend/internal/models"
)

// ProgressFunc persists a monotone progress update with a human-readable
// stage label.
type ProgressFunc func(progress int, stage string)

// Executor is the uniform per-type generation contract. Implementations
// build their own prompts and interpret the gateway response; they never
// touch task status or the ledger.
type Executor interface {
	Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error)
}

// Gateway is the completion interface executors depend on.
type Gateway interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error)
}

// NewExecutors wires one executor per supported task type.
func NewExecutors(gateway Gateway) map[string]Executor {
	return map[string]Executor{
		models.TaskTypeAnalyze:           &analyzeExecutor{gateway: gateway},
		models.TaskTypeOptimize:          &optimizeExecutor{gateway: gateway},
		models.TaskTypeAddSkill:          &addSkillExecutor{gateway: gateway},
		models.TaskTypePrepGuide:         &prepGuideExecutor{gateway: gateway},
		models.TaskTypeCoverLetter:       &coverLetterExecutor{gateway: gateway},
		models.TaskTypeTrainingSlideshow: &trainingSlideshowExecutor{gateway: gateway},
	}
}

// resumeJobPayload is shared by the resume-centric task types.
type resumeJobPayload struct {
	Resume         json.RawMessage `json:"resume"`
	JobDescription string          `json:"job_description"`
	Company        string          `json:"company,omitempty"`
	Skill          string          `json:"skill,omitempty"`
}

type guidePayload struct {
	GuideID        string `json:"guide_id"`
	JobDescription string `json:"job_description,omitempty"`
	Company        string `json:"company,omitempty"`
	Topic          string `json:"topic,omitempty"`
}

func decodePayload(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// textResult wraps a free-text completion into the artifact content shape.
func textResult(text string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"text": text})
	return out
}

// --- analyze -----------------------------------------------------------

type analyzeExecutor struct {
	gateway Gateway
}

func (e *analyzeExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p resumeJobPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(20, "Parsing resume…")

	content := fmt.Sprintf("Resume:\n%s\n\nJob description:\n%s", p.Resume, p.JobDescription)
	report(50, "Scoring resume against job description…")
	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You are a resume analyst. Return a JSON object with fields: score (0-100), strengths (array of strings), gaps (array of strings), missing_keywords (array of strings).",
		UserContent:       content,
		MaxOutputTokens:   2048,
		StructuredOutput:  true,
	})
	if err != nil {
		return nil, err
	}
	report(90, "Preparing analysis report…")
	return resp.JSON, nil
}

// --- optimize ----------------------------------------------------------

type optimizeExecutor struct {
	gateway Gateway
}

func (e *optimizeExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p resumeJobPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(25, "Optimizing resume…")

	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You are a resume writer. Rewrite the resume to better match the job description. Keep all facts truthful; strengthen phrasing and ordering only.",
		UserContent:       fmt.Sprintf("Resume:\n%s\n\nTarget job description:\n%s", p.Resume, p.JobDescription),
		MaxOutputTokens:   4096,
	})
	if err != nil {
		return nil, err
	}
	report(90, "Formatting optimized resume…")
	return textResult(resp.Text), nil
}

// --- add_skill ---------------------------------------------------------

type addSkillExecutor struct {
	gateway Gateway
}

func (e *addSkillExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p resumeJobPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(30, "Weaving skill into resume…")

	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You add a skill to a resume. Integrate the skill into the relevant sections without inventing experience.",
		UserContent:       fmt.Sprintf("Resume:\n%s\n\nSkill to add: %s", p.Resume, p.Skill),
		MaxOutputTokens:   2048,
	})
	if err != nil {
		return nil, err
	}
	return textResult(resp.Text), nil
}

// --- prep_guide --------------------------------------------------------

type prepGuideExecutor struct {
	gateway Gateway
}

func (e *prepGuideExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p guidePayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(20, "Researching company…")

	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You prepare interview guides. Return a JSON object with fields: topics (array of {title, summary, questions}), company_notes (string).",
		UserContent:       fmt.Sprintf("Company: %s\n\nJob description:\n%s", p.Company, p.JobDescription),
		MaxOutputTokens:   4096,
		StructuredOutput:  true,
	})
	if err != nil {
		return nil, err
	}
	report(85, "Assembling prep guide…")
	return resp.JSON, nil
}

// --- cover_letter ------------------------------------------------------

type coverLetterExecutor struct {
	gateway Gateway
}

func (e *coverLetterExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p resumeJobPayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(30, "Drafting cover letter…")

	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You write concise, specific cover letters grounded in the candidate's actual resume.",
		UserContent:       fmt.Sprintf("Resume:\n%s\n\nCompany: %s\n\nJob description:\n%s", p.Resume, p.Company, p.JobDescription),
		MaxOutputTokens:   2048,
	})
	if err != nil {
		return nil, err
	}
	return textResult(resp.Text), nil
}

// --- training_slideshow ------------------------------------------------

type trainingSlideshowExecutor struct {
	gateway Gateway
}

func (e *trainingSlideshowExecutor) Execute(ctx context.Context, task *models.Task, report ProgressFunc) (json.RawMessage, error) {
	var p guidePayload
	if err := decodePayload(task.Payload, &p); err != nil {
		return nil, err
	}
	report(20, "Outlining training content…")

	resp, err := e.gateway.Complete(ctx, ai.CompletionRequest{
		SystemInstruction: "You build training slideshows. Return a JSON object with fields: title (string), slides (array of {heading, bullets, speaker_notes}).",
		UserContent:       fmt.Sprintf("Topic: %s", p.Topic),
		MaxOutputTokens:   4096,
		StructuredOutput:  true,
	})
	if err != nil {
		return nil, err
	}
	report(85, "Rendering slides…")
	return resp.JSON, nil
}
