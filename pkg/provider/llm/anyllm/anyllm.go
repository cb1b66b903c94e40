// Package anyllm provides a response generator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports Groq, OpenAI, Anthropic, Gemini, Ollama, Mistral, and more.
//
// Groq is the recommended primary backend for the voice pipeline: its
// inference latency is well under a second with small Llama models, which
// keeps the end-to-end turn inside the latency budget.
//
// Usage:
//
//	p, err := anyllm.NewGroq("llama-3.1-8b-instant", anyllmlib.WithAPIKey("gsk-..."))
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/qamqor-ai/qamqor/pkg/provider"
	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
)

const (
	// defaultTemperature matches the gentle, factual register the assistant
	// uses with elderly users.
	defaultTemperature = 0.5

	// defaultMaxTokens keeps replies short enough to speak in a few seconds.
	defaultMaxTokens = 80
)

// Provider implements llm.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider backed by the given backend name.
//
// providerName is one of: "groq", "openai", "anthropic", "gemini", "ollama",
// "mistral". model is the specific model to use (e.g. "llama-3.1-8b-instant").
// opts are any-llm-go configuration options (anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL); without an API key option the backend falls back to
// its environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// NewGroq creates a Provider backed by Groq.
// Without options, it reads the GROQ_API_KEY environment variable.
func NewGroq(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("groq", model, opts...)
}

// NewOpenAI creates a Provider backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "groq":
		return groq.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: groq, openai, anthropic, gemini, ollama, mistral", providerName)
	}
}

// Generate implements llm.Provider. A blank user message returns the canned
// empty-input reply for the language without any remote call.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	start := time.Now()

	if strings.TrimSpace(req.UserMessage) == "" {
		return &llm.Result{
			Text:      llm.EmptyInputReply(req.Language),
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = llm.DefaultSystemPrompt(req.Language)
	}

	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: req.UserMessage},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %v: %w", err, provider.ErrUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response: %w", provider.ErrUnavailable)
	}

	return &llm.Result{
		Text:      resp.Choices[0].Message.ContentString(),
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}
