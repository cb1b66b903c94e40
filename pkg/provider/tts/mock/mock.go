// Package mock provides a test double for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/qamqor-ai/qamqor/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Synthesize when Err is nil. If both are nil,
	// Synthesize returns an empty Result.
	Result *tts.Result

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Calls records every request passed to Synthesize.
	Calls []tts.Request
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns Result, Err.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (*tts.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &tts.Result{}, nil
}

// CallCount returns the number of Synthesize invocations recorded so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
