// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a remote transcription service (Google Cloud Speech,
// a Whisper-compatible API, …) behind one batch operation: Transcribe takes an
// opaque audio buffer and returns the recognised text together with an overall
// confidence, word-level detail where the backend supports it, and the
// wall-clock latency of the call. Callers never need their own timers.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/qamqor-ai/qamqor/pkg/types"
)

// Request carries the audio buffer and recognition parameters for one
// transcription call.
type Request struct {
	// Audio is the raw audio buffer. Providers treat it as opaque bytes in a
	// container format they support (WAV, MP3, WebM, OGG). Must be non-empty.
	Audio []byte

	// Language selects the recognition language.
	Language types.Language

	// Hints is an optional list of vocabulary hints (names, places) that
	// increase recognition probability. Providers without phrase-hint support
	// ignore it.
	Hints []string
}

// Result is the uniform output of a transcription call.
type Result struct {
	// Text is the recognised utterance.
	Text string

	// Confidence is the overall confidence in [0.0, 1.0].
	Confidence float64

	// Words is the ordered word-level detail. May be empty when the backend
	// does not report per-word results.
	Words []types.Word

	// LatencyMS is the wall-clock duration of the call in whole milliseconds,
	// measured from invocation start to result.
	LatencyMS int64
}

// Provider is the abstraction over any STT backend.
//
// Transcribe returns an error wrapping [provider.ErrUnavailable] on network,
// authentication, or format failures and on empty input; any other error kind
// signals a programming defect and is not treated as fallback-worthy.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
