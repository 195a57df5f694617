package providers

import (
	"context"
	"sync"
	"time"
)

// StaticProvider serves a fixed snapshot, optionally after an artificial
// delay. It backs demos, cache warming exercises and tests; the delay and
// failure knobs make tier timeout behavior reproducible.
type StaticProvider struct {
	name    string
	data    map[string]interface{}
	latency time.Duration
	err     error

	mu         sync.Mutex
	fetchCount int
}

// NewStaticProvider creates a provider that returns the given snapshot.
func NewStaticProvider(name string, data map[string]interface{}) *StaticProvider {
	return &StaticProvider{
		name: name,
		data: data,
	}
}

// WithLatency makes every fetch sleep for d before returning.
func (p *StaticProvider) WithLatency(d time.Duration) *StaticProvider {
	p.latency = d
	return p
}

// WithError makes every fetch fail with err.
func (p *StaticProvider) WithError(err error) *StaticProvider {
	p.err = err
	return p
}

func (p *StaticProvider) Name() string {
	return p.name
}

// Fetch returns a copy of the snapshot. It honors context cancellation
// during the configured latency.
func (p *StaticProvider) Fetch(ctx context.Context, customerID, conversationID string) (map[string]interface{}, error) {
	p.mu.Lock()
	p.fetchCount++
	p.mu.Unlock()

	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.err != nil {
		return nil, p.err
	}

	snapshot := make(map[string]interface{}, len(p.data)+1)
	for k, v := range p.data {
		snapshot[k] = v
	}
	snapshot["customer_id"] = customerID

	return snapshot, nil
}

// HealthCheck reports the configured failure, if any.
func (p *StaticProvider) HealthCheck(ctx context.Context) error {
	return p.err
}

// FetchCount returns how many times Fetch has been invoked.
func (p *StaticProvider) FetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchCount
}
