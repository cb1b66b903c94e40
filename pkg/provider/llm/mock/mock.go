// Package mock provides a test double for the llm package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/qamqor-ai/qamqor/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Generate when Err is nil. If both are nil,
	// Generate returns an empty Result.
	Result *llm.Result

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// Calls records every request passed to Generate.
	Calls []llm.Request
}

var _ llm.Provider = (*Provider)(nil)

// Generate records the call and returns Result, Err.
func (p *Provider) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &llm.Result{}, nil
}

// CallCount returns the number of Generate invocations recorded so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
