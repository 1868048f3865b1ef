// Package fieldline provides the job scheduling and lifecycle engine for a
// multi-tenant contractor-management platform: recurring series expansion,
// advisory conflict detection, a capability-based authorization guard, the
// archive/purge sweep, and lifecycle hooks.
//
// Fieldline is designed as a library, not a service. The outer CRUD/API layer
// imports it, configures a store, and calls the lifecycle operations with an
// explicit tenant on every call. There is no ambient tenant context.
//
// # Quick Start
//
//	st := memory.New()
//	mgr := lifecycle.New(st,
//	    lifecycle.WithDirectory(dir),
//	    lifecycle.WithNotifier(mailer),
//	)
//	created, err := mgr.Create(ctx, tenantID, actor, draft, lifecycle.CreateOptions{})
//
// # Architecture
//
// Fieldline follows a composable store pattern where each subsystem (job,
// recurrence, sweep) defines its own store interface. A single backend
// implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package fieldline
