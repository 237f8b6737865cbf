// Package pipeline builds an ordered sequence of parts from one source value.
package pipeline

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
)

// Part is one step of a pipeline.
type Part interface {
	Handle(ctx context.Context) error
}

// PartFunc adapts a function to Part.
type PartFunc func(ctx context.Context) error

func (f PartFunc) Handle(ctx context.Context) error { return f(ctx) }

// NoopPart is returned by providers that have nothing to contribute for a
// given source. It keeps the part count equal to the provider count.
type NoopPart struct{}

func (NoopPart) Handle(context.Context) error { return nil }

// PartProvider derives one Part from a source value. Providers must not
// mutate the source and must not depend on other providers having run.
type PartProvider[S any] interface {
	Name() string
	Provide(ctx context.Context, src S) (Part, error)
}

// ProviderFunc adapts a function to PartProvider.
type ProviderFunc[S any] struct {
	ID string
	Fn func(ctx context.Context, src S) (Part, error)
}

func (p ProviderFunc[S]) Name() string { return p.ID }

func (p ProviderFunc[S]) Provide(ctx context.Context, src S) (Part, error) {
	return p.Fn(ctx, src)
}

// ProviderError reports which provider failed during Construct.
type ProviderError struct {
	Index    int
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("pipeline provider %d (%s): %v", e.Index, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PartError reports which part failed during Run.
type PartError struct {
	Index int
	Err   error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("pipeline part %d: %v", e.Index, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// Pipeline is the ordered result of Construct.
type Pipeline struct {
	parts []Part
}

// Parts returns a copy of the parts in provider order.
func (p Pipeline) Parts() []Part {
	return append([]Part(nil), p.parts...)
}

// Len returns the number of parts.
func (p Pipeline) Len() int { return len(p.parts) }

// Run executes the parts sequentially and stops at the first failure.
func (p Pipeline) Run(ctx context.Context) error {
	for i, part := range p.parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := part.Handle(ctx); err != nil {
			return &PartError{Index: i, Err: err}
		}
	}
	return nil
}

// Constructor holds an immutable list of part providers.
type Constructor[S any] struct {
	providers []PartProvider[S]
	logger    loggingpkg.ServiceLogger
}

// NewConstructor validates and copies providers.
func NewConstructor[S any](log loggingpkg.ServiceLogger, providers ...PartProvider[S]) (*Constructor[S], error) {
	for _, p := range providers {
		if p == nil {
			return nil, errspkg.ErrProviderRequired
		}
	}
	return &Constructor[S]{
		providers: append([]PartProvider[S](nil), providers...),
		logger:    loggingpkg.OrNop(log),
	}, nil
}

// Construct asks every provider, in registration order, for a part derived
// from src. The first provider failure aborts construction; no partial
// pipeline is returned. A nil part is replaced by NoopPart.
func (c *Constructor[S]) Construct(ctx context.Context, src S) (Pipeline, error) {
	parts := make([]Part, 0, len(c.providers))
	for i, p := range c.providers {
		part, err := p.Provide(ctx, src)
		if err != nil {
			c.logger.Error("Pipeline provider failed", err, loggingpkg.LogFields{
				"provider": p.Name(),
				"index":    i,
			})
			return Pipeline{}, &ProviderError{Index: i, Provider: p.Name(), Err: err}
		}
		if part == nil {
			part = NoopPart{}
		}
		parts = append(parts, part)
	}
	return Pipeline{parts: parts}, nil
}
