// Package agent asks a language model for summaries, chat replies and
// flashcards, and turns its replies into typed results.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"

	"github.com/study-assistant/backend/internal/model"
)

// ErrNotConfigured is returned by every operation of an agent built
// without provider credentials.
var ErrNotConfigured = errors.New("study agent is not configured")

// Generator is the part of llms.Model the agent uses.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Config configures the agent.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Agent runs the study prompts against a Generator.
type Agent struct {
	gen         Generator
	temperature float64
	timeout     time.Duration
}

// New creates an Agent over gen.
func New(gen Generator, temperature float64, timeout time.Duration) *Agent {
	return &Agent{gen: gen, temperature: temperature, timeout: timeout}
}

// NewFromConfig builds the provider client named in cfg. Without an API key
// the returned agent fails every call with ErrNotConfigured.
func NewFromConfig(cfg Config) (*Agent, error) {
	if cfg.APIKey == "" {
		return New(nil, cfg.Temperature, cfg.Timeout), nil
	}

	switch cfg.Provider {
	case "", "mistral":
		llm, err := mistral.New(
			mistral.WithAPIKey(cfg.APIKey),
			mistral.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create mistral client: %w", err)
		}
		return New(llm, cfg.Temperature, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}
}

// Configured reports whether the agent can reach a model.
func (a *Agent) Configured() bool {
	return a.gen != nil
}

// SummaryResult is a parsed summary.
type SummaryResult struct {
	Summary string `json:"summary"`
	Style   string `json:"style"`
}

// Summarize summarizes content in the given style.
func (a *Agent) Summarize(ctx context.Context, style, content string) (*SummaryResult, error) {
	text, err := a.generate(ctx, summarizeInstructions,
		fmt.Sprintf("Summarize the following in a %s way:\n\n%s", style, content))
	if err != nil {
		return nil, err
	}
	return parseSummary(text, style)
}

// Chat answers a free-form question.
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	text, err := a.generate(ctx, chatInstructions, message)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Flashcards generates at most MaxFlashcards cards from content.
func (a *Agent) Flashcards(ctx context.Context, style, content string) ([]model.Flashcard, error) {
	text, err := a.generate(ctx, flashcardInstructions,
		fmt.Sprintf("Create %s flashcards for the following content. Return JSON array of {question, answer}:\n\n%s", style, content))
	if err != nil {
		return nil, err
	}
	return parseFlashcards(text)
}

func (a *Agent) generate(ctx context.Context, system, prompt string) (string, error) {
	if a.gen == nil {
		return "", ErrNotConfigured
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := a.gen.GenerateContent(ctx, messages, llms.WithTemperature(a.temperature))
	if err != nil {
		return "", fmt.Errorf("agent request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", model.ErrUnexpectedAgentOutput)
	}
	return resp.Choices[0].Content, nil
}
