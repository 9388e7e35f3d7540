// Package ai adapts an external chat-completion capability into structured
// security verdicts. The adapter makes a single attempt per scan and owns
// its own timeout; any failure is surfaced as an error for the orchestrator
// to fail open on.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/your-org/pr-sentinel/pkg/models"
)

// Config holds the adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible endpoints
	Model   string
	Timeout time.Duration
}

// Result is the parsed verdict returned by the reasoning capability.
type Result struct {
	SummaryEN string
	SummaryJP string
	Action    models.Action
	Severity  models.Severity
	Fix       string
	Issues    []models.Issue
}

// Champion is the outcome of the secondary security-improvement check.
type Champion struct {
	IsSecurityFix bool   `json:"is_security_fix"`
	Badge         string `json:"badge"`
	Praise        string `json:"praise_message"`
}

// Analyzer talks to the configured model.
type Analyzer struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

// NewAnalyzer creates an analyzer. An empty API key is an error; callers
// that want to run without the AI tier wire a nil analyzer instead.
func NewAnalyzer(cfg Config, logger *log.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger.Printf("Initialized AI analyzer with model %s", cfg.Model)
	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

const analyzePrompt = `You are a Senior Security Engineer. Analyze the following code diff.

%s

RETURN JSON ONLY using this schema:
{
    "status": "clean" | "warning" | "critical",
    "summary_en": "...",
    "summary_jp": "...",
    "action": "PASS" | "WARN" | "BLOCK",
    "severity": "low" | "medium" | "high" | "critical",
    "fix": "...",
    "vulnerabilities": [{"type": "...", "file": "...", "line": 0, "severity": "...", "description": "..."}]
}

CODE:
%s`

// verdictPayload is the wire shape of the model's answer. The status field
// is accepted but severity is the canonical field stored on the verdict.
type verdictPayload struct {
	Status          string        `json:"status"`
	SummaryEN       string        `json:"summary_en"`
	SummaryJP       string        `json:"summary_jp"`
	Action          string        `json:"action"`
	Severity        string        `json:"severity"`
	Fix             string        `json:"fix"`
	Vulnerabilities []vulnPayload `json:"vulnerabilities"`
}

type vulnPayload struct {
	Type        string `json:"type"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
}

// Analyze sends the combined diff plus the author's risk context and parses
// the structured verdict. Any transport or parse failure is returned as an
// error; it is never mapped to a blocking verdict here.
func (a *Analyzer) Analyze(ctx context.Context, diff, riskContext string) (Result, error) {
	raw, err := a.complete(ctx, fmt.Sprintf(analyzePrompt, riskContext, diff))
	if err != nil {
		return Result{}, err
	}

	payload := verdictPayload{}
	body, err := extractJSON(raw)
	if err != nil {
		return Result{}, fmt.Errorf("AI response is not valid JSON: %w", err)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, fmt.Errorf("AI response does not match verdict schema: %w", err)
	}

	result := Result{
		SummaryEN: payload.SummaryEN,
		SummaryJP: payload.SummaryJP,
		Action:    normalizeAction(payload.Action),
		Severity:  normalizeSeverity(payload.Severity),
		Fix:       payload.Fix,
	}
	for _, v := range payload.Vulnerabilities {
		result.Issues = append(result.Issues, models.Issue{
			Type:        v.Type,
			File:        v.File,
			Line:        v.Line,
			Rule:        v.Type,
			Severity:    v.Severity,
			Description: v.Description,
			Fix:         v.Fix,
			Origin:      models.OriginAI,
		})
	}
	return result, nil
}

const championPrompt = `You are a Security Culture Expert. Analyze this code diff.
Does this code FIX a security issue, ADD input validation, or IMPROVE security posture?

RETURN JSON ONLY:
{
    "is_security_fix": true,
    "badge": "Security Champion",
    "praise_message": "Write a short 1-sentence encouraging message about the fix."
}

If no security improvement, return "is_security_fix": false.

CODE: %s`

// championDiffLimit bounds the secondary check's payload.
const championDiffLimit = 5000

// CheckChampion asks whether the diff represents a security improvement.
// It is a non-blocking enrichment: errors are returned for logging only.
func (a *Analyzer) CheckChampion(ctx context.Context, diff string) (*Champion, error) {
	if len(diff) > championDiffLimit {
		diff = diff[:championDiffLimit]
	}

	raw, err := a.complete(ctx, fmt.Sprintf(championPrompt, diff))
	if err != nil {
		return nil, err
	}

	body, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("champion response is not valid JSON: %w", err)
	}
	champion := &Champion{}
	if err := json.Unmarshal(body, champion); err != nil {
		return nil, fmt.Errorf("champion response does not match schema: %w", err)
	}
	return champion, nil
}

// complete runs one chat completion. No retries: the orchestrator treats
// every failure the same way, so retrying here only adds latency.
func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("AI call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls the first JSON object out of a model response, tolerating
// Markdown code fences and surrounding prose.
func extractJSON(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return []byte(m[1]), nil
	}
	if m := bareJSON.FindString(text); m != "" {
		return []byte(m), nil
	}
	return nil, fmt.Errorf("no JSON object found in response")
}

func normalizeAction(s string) models.Action {
	switch models.Action(s) {
	case models.ActionPass, models.ActionWarn, models.ActionBlock:
		return models.Action(s)
	}
	return models.ActionPass
}

func normalizeSeverity(s string) models.Severity {
	switch models.Severity(s) {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return models.Severity(s)
	}
	return models.SeverityLow
}
