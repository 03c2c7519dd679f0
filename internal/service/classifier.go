package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"echoform.app/echoform/common/llm"
	"echoform.app/echoform/internal/model"
)

// Classifier produces the finalization enrichment labels. Every method is
// best-effort: callers swallow errors and store sentinels, because
// classification is enrichment, not a correctness requirement.
type Classifier interface {
	ClassifyPMF(ctx context.Context, transcript string) (string, error)
	ClassifyPersona(ctx context.Context, transcript string, catalogue []string) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
}

type llmClassifier struct {
	classifierLLM llm.Client
	summaryLLM    llm.Client
	maxTokens     int
}

func NewClassifier(classifierLLM, summaryLLM llm.Client, maxTokens int) Classifier {
	return &llmClassifier{
		classifierLLM: classifierLLM,
		summaryLLM:    summaryLLM,
		maxTokens:     maxTokens,
	}
}

type pmfResult struct {
	Category string `json:"category" jsonschema_description:"One of: very disappointed, somewhat disappointed, not disappointed"`
}

type personaResult struct {
	Persona string `json:"persona" jsonschema_description:"The best-matching persona label, verbatim from the provided list, or UNCLASSIFIED"`
}

const pmfSystemPrompt = `You classify customer interview transcripts for product-market fit.
Based on how the respondent would feel if they could no longer use the product,
answer with exactly one category: "very disappointed", "somewhat disappointed",
or "not disappointed".`

const personaSystemPrompt = `You match a customer interview transcript against an
account's persona catalogue. Answer with one label copied verbatim from the list,
or "UNCLASSIFIED" when no label clearly fits. Never invent a new label.`

const summarySystemPrompt = `You summarize customer interview transcripts. Write
2-4 sentences covering who the respondent is, what they value, and their main
pain points. Plain prose, no headings.`

// chat issues a structured completion with a single retry on transient
// upstream failures. Enrichment runs once per response, so one retry is all
// the budget it gets.
func (c *llmClassifier) chat(ctx context.Context, req llm.Request, result any) error {
	_, err := c.classifierLLM.Chat(ctx, req, result)
	if err != nil && llm.IsRetryable(ctx, err) {
		_, err = c.classifierLLM.Chat(ctx, req, result)
	}
	return err
}

func (c *llmClassifier) ClassifyPMF(ctx context.Context, transcript string) (string, error) {
	var result pmfResult
	err := c.chat(ctx, llm.Request{
		SystemPrompt: pmfSystemPrompt,
		UserPrompt:   transcript,
		SchemaName:   "pmf_classification",
		Schema:       llm.GenerateSchema[pmfResult](),
		MaxTokens:    c.maxTokens,
		Temperature:  llm.Temp(0),
	}, &result)
	if err != nil {
		return "", fmt.Errorf("pmf classification: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(result.Category))
	switch category {
	case model.PMFVeryDisappointed, model.PMFSomewhatDisappointed, model.PMFNotDisappointed:
		return category, nil
	}

	slog.WarnContext(ctx, "classifier returned label outside taxonomy", "label", result.Category)
	return "", fmt.Errorf("pmf classification: label %q outside taxonomy", result.Category)
}

func (c *llmClassifier) ClassifyPersona(ctx context.Context, transcript string, catalogue []string) (string, error) {
	if len(catalogue) == 0 {
		return model.Unclassified, nil
	}

	var result personaResult
	err := c.chat(ctx, llm.Request{
		SystemPrompt: personaSystemPrompt,
		UserPrompt:   fmt.Sprintf("Personas:\n%s\n\nTranscript:\n%s", strings.Join(catalogue, "\n"), transcript),
		SchemaName:   "persona_classification",
		Schema:       llm.GenerateSchema[personaResult](),
		MaxTokens:    c.maxTokens,
		Temperature:  llm.Temp(0),
	}, &result)
	if err != nil {
		return "", fmt.Errorf("persona classification: %w", err)
	}

	return MatchPersona(result.Persona, catalogue), nil
}

func (c *llmClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	summary, err := c.summaryLLM.Complete(ctx, summarySystemPrompt, transcript, c.maxTokens)
	if err != nil && llm.IsRetryable(ctx, err) {
		summary, err = c.summaryLLM.Complete(ctx, summarySystemPrompt, transcript, c.maxTokens)
	}
	if err != nil {
		return "", fmt.Errorf("transcript summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// MatchPersona matches a candidate label against the account's catalogue with
// case and whitespace normalization. Anything that doesn't match exactly is
// UNCLASSIFIED; the catalogue is the account's own, never extended here.
func MatchPersona(candidate string, catalogue []string) string {
	normalized := normalizeLabel(candidate)
	if normalized == "" || normalized == normalizeLabel(model.Unclassified) {
		return model.Unclassified
	}
	for _, label := range catalogue {
		if normalizeLabel(label) == normalized {
			return label
		}
	}
	return model.Unclassified
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// disabledClassifier stands in when no LLM is configured. Every call errors,
// which the finalizer degrades into unset enrichment fields.
type disabledClassifier struct{}

var errClassifierDisabled = errors.New("classifier llm not configured")

func (disabledClassifier) ClassifyPMF(ctx context.Context, transcript string) (string, error) {
	return "", errClassifierDisabled
}

func (disabledClassifier) ClassifyPersona(ctx context.Context, transcript string, catalogue []string) (string, error) {
	return "", errClassifierDisabled
}

func (disabledClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	return "", errClassifierDisabled
}
