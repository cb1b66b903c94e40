// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider synthesises one assistant reply into a single audio buffer.
// Providers return raw encoded audio; turning the buffer into a durable,
// addressable reference is the orchestrator's job (see internal/audiostore).
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/qamqor-ai/qamqor/pkg/types"
)

// Request carries the text and voice parameters for one synthesis call.
type Request struct {
	// Text is the assistant reply to synthesise. Must be non-empty.
	Text string

	// Language selects the synthesis voice. Providers that do not carry a
	// voice for the language fail with an error wrapping provider.ErrUnavailable.
	Language types.Language
}

// Result is the uniform output of a synthesis call.
type Result struct {
	// Audio is the encoded audio buffer.
	Audio []byte

	// Format is the container/codec of Audio (e.g. "wav", "mp3", "pcm_16000").
	Format string

	// DurationSeconds is the estimated playback duration.
	DurationSeconds float64

	// LatencyMS is the wall-clock duration of the call in whole milliseconds.
	LatencyMS int64
}

// Provider is the abstraction over any TTS backend.
//
// Synthesize returns an error wrapping [provider.ErrUnavailable] on network or
// authentication failure and on unsupported languages; other error kinds
// propagate as programming defects.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

// EstimateDuration returns a rough playback duration for text, assuming the
// unhurried speaking rate the assistant's voices use (~12 characters/second).
// Used by providers whose APIs do not report duration.
func EstimateDuration(text string) float64 {
	const charsPerSecond = 12.0
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return float64(n) / charsPerSecond
}
