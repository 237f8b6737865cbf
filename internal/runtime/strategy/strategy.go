// Package strategy selects an implementation for a context by running an
// ordered list of predicates.
package strategy

import (
	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
)

// Evaluator pairs a predicate over a context with the strategy that applies
// when the predicate holds.
type Evaluator[C any, S any] struct {
	Supports func(C) bool
	Strategy S
}

// Resolver returns the strategy of the first evaluator whose predicate holds.
// A Resolver is immutable once built and safe for concurrent use provided the
// predicates are.
type Resolver[C any, S any] struct {
	evaluators []Evaluator[C, S]
}

// NewResolver builds a Resolver evaluating evals in the given order.
func NewResolver[C any, S any](evals ...Evaluator[C, S]) (*Resolver[C, S], error) {
	for _, e := range evals {
		if e.Supports == nil {
			return nil, errspkg.ErrEvaluatorRequired
		}
	}
	return &Resolver[C, S]{evaluators: append([]Evaluator[C, S](nil), evals...)}, nil
}

// MustResolver is NewResolver that panics on invalid evaluators. Intended for
// package-level wiring.
func MustResolver[C any, S any](evals ...Evaluator[C, S]) *Resolver[C, S] {
	r, err := NewResolver(evals...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve evaluates predicates in order and stops at the first match. The
// boolean is false when nothing matched; the caller decides what absence
// means.
func (r *Resolver[C, S]) Resolve(c C) (S, bool) {
	for _, e := range r.evaluators {
		if e.Supports(c) {
			return e.Strategy, true
		}
	}
	var zero S
	return zero, false
}

// ResolveOr returns the resolved strategy or fallback.
func (r *Resolver[C, S]) ResolveOr(c C, fallback S) S {
	if s, ok := r.Resolve(c); ok {
		return s
	}
	return fallback
}

// Len reports how many evaluators the resolver holds.
func (r *Resolver[C, S]) Len() int { return len(r.evaluators) }
