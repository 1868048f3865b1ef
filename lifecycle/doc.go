// Package lifecycle is the front door of the Fieldline engine. The Manager
// owns every job mutation — create, update, archive, restore, permanent
// delete, confirm, decline — and the tenant-scoped read operations, and it
// composes the subsystems around them: the authorization guard approves or
// denies, the recurrence expander materializes series, the conflict
// detector reports overlapping bookings, and the store persists the result.
//
// Every operation takes an explicit tenant id and an authenticated actor;
// there is no ambient scope. Operations run through a middleware chain
// (panic recovery, tracing, metrics, logging, timeout) and report their
// outcome to registered extensions after the write commits. Extension and
// notification failures never roll a mutation back.
//
// The Manager keeps no mutable state of its own: all coordination is
// through the store, so any number of stateless handlers can share one
// Manager or build their own per request.
package lifecycle
