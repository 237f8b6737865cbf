// Package projectconfig resolves the flat attribute map of a project.
//
// The dispatch core only knows the Provider interface. Timeouts, circuit
// breaking and caching are provider decorators so the core stays a plain
// fetch-then-fan-out.
package projectconfig

import (
	"context"
	"fmt"
	"maps"
)

// Provider returns the configuration attributes of one project.
type Provider interface {
	Provide(ctx context.Context, projectID int64) (map[string]string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, projectID int64) (map[string]string, error)

func (f ProviderFunc) Provide(ctx context.Context, projectID int64) (map[string]string, error) {
	return f(ctx, projectID)
}

// StaticProvider serves attributes from memory. Unknown projects yield an
// error, mirroring a failed lookup.
type StaticProvider map[int64]map[string]string

func (s StaticProvider) Provide(_ context.Context, projectID int64) (map[string]string, error) {
	attrs, ok := s[projectID]
	if !ok {
		return nil, fmt.Errorf("project %d not found", projectID)
	}
	return maps.Clone(attrs), nil
}
