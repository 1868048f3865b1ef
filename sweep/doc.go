// Package sweep implements the archival sweep: the background pass that
// moves old jobs out of the active data set and eventually off it.
//
// A pass has two stages per tenant. The archive stage selects active jobs
// whose end time is older than the configured archive window, writes a
// denormalized snapshot of each to the blob store, and only then stamps
// ArchivedAt; a job whose snapshot fails to upload stays active and is
// picked up again next run. The purge stage hard-deletes jobs that have
// been archived longer than the grace period. Because the snapshot is
// written before the job leaves the active set, a tenant's history stays
// auditable after the purge.
//
// Tenants are swept in parallel with a bounded worker count, and one
// tenant's failure never aborts the others: every failure lands in the
// run's report instead. Snapshot uploads share a rate limiter, carry a
// per-upload timeout, and retry transient errors with backoff.
//
// The sweep runs with engine trust. It performs no per-actor
// authorization; scheduling it is an operator decision, either directly
// through Sweeper.Run or on a cron cadence through Scheduler.
package sweep
