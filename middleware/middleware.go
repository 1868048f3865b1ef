// Package middleware provides composable middleware for engine operations.
// Middleware wraps operation calls synchronously and can modify execution
// (recover from panics, enforce deadlines, log, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/fieldline/fieldline/id"
)

// Op describes one engine operation as seen by middleware. JobID is the
// zero value for operations that are not scoped to a single job (list
// queries, sweep passes).
type Op struct {
	Name     string // "job.create", "job.confirm", "sweep.run", ...
	TenantID id.TenantID
	JobID    id.JobID
}

// Handler is the terminal function that executes the operation logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the operation being executed, and
// the next handler to call. Middleware MUST call next to continue the
// chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, op *Op, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}
