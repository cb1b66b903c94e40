// Package provider defines error semantics shared by all capability provider
// packages (stt, llm, tts).
//
// Adapters wrap transient faults — network errors, authentication failures,
// provider-side rejections — with [ErrUnavailable] so that the resilience
// layer can distinguish "try the next provider" from a programming defect,
// which is returned unwrapped and propagates to the caller.
package provider

import "errors"

// ErrUnavailable marks a provider-level failure that a fallback chain may
// absorb by moving on to the next provider. Test with errors.Is.
var ErrUnavailable = errors.New("provider unavailable")
