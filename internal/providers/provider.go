// Package providers defines the capability contract data providers implement
// and ships the built-in provider implementations.
package providers

import "context"

// Provider is a pluggable data source that produces a flat key/value
// snapshot for one customer. Implementations must honor the caller-supplied
// context and return an error rather than hang.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, customerID, conversationID string) (map[string]interface{}, error)
}

// HealthChecker is optionally implemented by providers that can report
// backend availability without fetching.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
