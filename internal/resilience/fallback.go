package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/qamqor-ai/qamqor/internal/observe"
	"github.com/qamqor-ai/qamqor/pkg/provider"
)

// ErrAllFailed is returned when every registered entry in a [FallbackGroup]
// fails or has an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry circuit breaker created for each
// provider registered in a [FallbackGroup], plus the group's instrumentation.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Kind labels the capability ("stt", "llm", "tts") on recorded metrics.
	// The chain constructors set it.
	Kind string

	// Metrics receives per-attempt provider counters. Nil disables
	// instrumentation, which unit tests rely on.
	Metrics *observe.Metrics
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable providers of one
// capability. Entries are tried in registration order; each has its own
// circuit breaker. A group starts empty — unconfigured providers are simply
// never registered, so skipping them costs nothing.
//
// Providers get exactly one attempt per group invocation; there is no
// per-entry retry.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates an empty [FallbackGroup]. Providers are registered
// in fallback order via [FallbackGroup.Add].
func NewFallbackGroup[T any](cfg FallbackConfig) *FallbackGroup[T] {
	return &FallbackGroup[T]{cfg: cfg}
}

// Add appends a provider to the group. Entries are tried in the order added.
func (fg *FallbackGroup[T]) Add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of registered entries.
func (fg *FallbackGroup[T]) Len() int {
	return len(fg.entries)
}

// Names returns the registered entry names in fallback order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// ExecuteWithResult tries fn against each entry in order until one succeeds.
// The first success short-circuits the group.
//
// Only provider-level failures ([provider.ErrUnavailable]) and open breakers
// are absorbed by moving to the next entry; any other error kind is a
// programming defect and is returned immediately without consulting further
// entries. Returns [ErrAllFailed] (wrapping the last failure) when every entry
// was exhausted.
//
// This is a package-level function because Go does not support method-level
// type parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			if fg.cfg.Metrics != nil {
				fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, "ok")
			}
			return result, nil
		}
		switch {
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		case errors.Is(err, provider.ErrUnavailable):
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
			if fg.cfg.Metrics != nil {
				fg.cfg.Metrics.RecordProviderRequest(ctx, entry.name, fg.cfg.Kind, "error")
				fg.cfg.Metrics.RecordProviderError(ctx, entry.name, fg.cfg.Kind)
			}
		default:
			// Not a provider fault — propagate instead of masking a defect.
			return zero, err
		}
		if i == 0 && fg.cfg.Metrics != nil {
			fg.cfg.Metrics.ProviderFallbacks.Add(ctx, 1,
				metric.WithAttributes(observe.Attr("kind", fg.cfg.Kind)))
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
