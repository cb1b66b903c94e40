package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
	"github.com/qamqor-ai/qamqor/pkg/provider/stt"
	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
)

// ErrChainExhausted is returned when a chain produced no result even from its
// terminal stub. The stubs never fail, so reaching this error indicates a
// misconfigured chain (e.g. a nil stub), not a transient condition.
var ErrChainExhausted = errors.New("fallback chain exhausted")

// STTChain is the speech-to-text fallback chain: remote providers in
// registration order, then the local stub as the guaranteed terminal result.
// Remote failures are logged and absorbed; the chain's contract is to always
// return a usable transcription.
type STTChain struct {
	group *FallbackGroup[stt.Provider]
	stub  stt.Provider
}

// NewSTTChain creates an [STTChain] terminating in stub. Remote providers are
// registered in fallback order via [STTChain.Use].
func NewSTTChain(stub stt.Provider, cfg FallbackConfig) *STTChain {
	cfg.Kind = "stt"
	return &STTChain{
		group: NewFallbackGroup[stt.Provider](cfg),
		stub:  stub,
	}
}

// Use registers a remote STT provider.
func (c *STTChain) Use(name string, p stt.Provider) {
	c.group.Add(name, p)
}

// Providers returns the registered remote provider names in fallback order.
func (c *STTChain) Providers() []string {
	return c.group.Names()
}

// Transcribe tries each remote provider once and falls back to the local stub.
func (c *STTChain) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if c.group.Len() > 0 {
		res, err := ExecuteWithResult(ctx, c.group, func(p stt.Provider) (*stt.Result, error) {
			return p.Transcribe(ctx, req)
		})
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrAllFailed) {
			return nil, err
		}
		slog.Warn("all STT providers failed, using stub", "error", err)
	}
	if c.stub == nil {
		return nil, fmt.Errorf("stt chain has no stub provider: %w", ErrChainExhausted)
	}
	res, err := c.stub.Transcribe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stt stub failed: %v: %w", err, ErrChainExhausted)
	}
	return res, nil
}

// LLMChain is the response-generation fallback chain. Shape and contract
// match [STTChain].
type LLMChain struct {
	group *FallbackGroup[llm.Provider]
	stub  llm.Provider
}

// NewLLMChain creates an [LLMChain] terminating in stub.
func NewLLMChain(stub llm.Provider, cfg FallbackConfig) *LLMChain {
	cfg.Kind = "llm"
	return &LLMChain{
		group: NewFallbackGroup[llm.Provider](cfg),
		stub:  stub,
	}
}

// Use registers a remote response-generation provider.
func (c *LLMChain) Use(name string, p llm.Provider) {
	c.group.Add(name, p)
}

// Providers returns the registered remote provider names in fallback order.
func (c *LLMChain) Providers() []string {
	return c.group.Names()
}

// Generate tries each remote provider once and falls back to the local stub.
func (c *LLMChain) Generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	if c.group.Len() > 0 {
		res, err := ExecuteWithResult(ctx, c.group, func(p llm.Provider) (*llm.Result, error) {
			return p.Generate(ctx, req)
		})
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrAllFailed) {
			return nil, err
		}
		slog.Warn("all LLM providers failed, using stub", "error", err)
	}
	if c.stub == nil {
		return nil, fmt.Errorf("llm chain has no stub provider: %w", ErrChainExhausted)
	}
	res, err := c.stub.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm stub failed: %v: %w", err, ErrChainExhausted)
	}
	return res, nil
}

// TTSChain is the speech-synthesis fallback chain. Shape and contract match
// [STTChain].
type TTSChain struct {
	group *FallbackGroup[tts.Provider]
	stub  tts.Provider
}

// NewTTSChain creates a [TTSChain] terminating in stub.
func NewTTSChain(stub tts.Provider, cfg FallbackConfig) *TTSChain {
	cfg.Kind = "tts"
	return &TTSChain{
		group: NewFallbackGroup[tts.Provider](cfg),
		stub:  stub,
	}
}

// Use registers a remote TTS provider.
func (c *TTSChain) Use(name string, p tts.Provider) {
	c.group.Add(name, p)
}

// Providers returns the registered remote provider names in fallback order.
func (c *TTSChain) Providers() []string {
	return c.group.Names()
}

// Synthesize tries each remote provider once and falls back to the local stub.
func (c *TTSChain) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if c.group.Len() > 0 {
		res, err := ExecuteWithResult(ctx, c.group, func(p tts.Provider) (*tts.Result, error) {
			return p.Synthesize(ctx, req)
		})
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrAllFailed) {
			return nil, err
		}
		slog.Warn("all TTS providers failed, using stub", "error", err)
	}
	if c.stub == nil {
		return nil, fmt.Errorf("tts chain has no stub provider: %w", ErrChainExhausted)
	}
	res, err := c.stub.Synthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tts stub failed: %v: %w", err, ErrChainExhausted)
	}
	return res, nil
}
