// internal/llm/llmtest/fake.go

// Package llmtest provides a scripted Provider for pipeline tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
)

// Reply is what the fake returns for one call.
type Reply struct {
	Text string
	Err  error
}

// Fake answers calls with Respond when set, otherwise pops Replies in order.
// When replies run out it returns Default.
type Fake struct {
	ProviderName string
	Respond      func(req *llm.Request) (string, error)
	Replies      []Reply
	Default      Reply

	mu    sync.Mutex
	calls []*llm.Request
}

func (f *Fake) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *Fake) Complete(_ context.Context, req *llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	if f.Respond != nil {
		f.mu.Unlock()
		return f.Respond(req)
	}
	var r Reply
	if len(f.Replies) > 0 {
		r, f.Replies = f.Replies[0], f.Replies[1:]
	} else {
		r = f.Default
	}
	f.mu.Unlock()
	return r.Text, r.Err
}

// Calls returns the recorded requests.
func (f *Fake) Calls() []*llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*llm.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
