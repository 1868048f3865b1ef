// Package job defines the job entity, its two state axes, assignments,
// and the store interface.
//
// # Job Entity
//
// A [Job] is one schedulable unit of work for a tenant. It embeds
// [fieldline.Entity] for timestamps and carries two independent state axes:
//
// Work status (what is happening to the work):
//
//	pending_confirmation → scheduled | cancelled
//	scheduled            → in_progress | cancelled
//	in_progress          → completed | cancelled
//
// Retention (where the row is in its life):
//
//	active → archived → purged
//
// Retention moves strictly forward except Restore, which clears ArchivedAt.
// Purged rows are gone; there is no way back. The two axes are stored as
// nullable timestamps (ArchivedAt, DeletedAt), never a combined enum, and
// cross-axis rules (an archived job cannot change work status) are enforced
// in the transition functions.
//
// # Scheduling
//
// StartTime and EndTime are both optional. A job with ToBeScheduled set has
// no window yet; both times are nil. When both are present EndTime must not
// precede StartTime.
//
// # Assignments
//
// AssignedTo is an ordered list of [Assignment] values. Historical data
// encoded this field three ways (bare user-id string, array of strings,
// array of objects); [NormalizeAssignments] converts any of these to the
// canonical form exactly once, at the storage edge. Business logic only ever
// sees []Assignment.
package job
