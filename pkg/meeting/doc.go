// Package meeting enforces the meeting lifecycle: at most one open meeting per
// user, a per-meeting cap frozen at start, ordered five- and one-minute
// warnings, and an idempotent close.
//
// Guard.Start relies on the Store to check and insert atomically. Guard.Check
// and the Supervisor both derive elapsed time from the stored start timestamp,
// so enforcement does not depend on any in-memory timer surviving.
package meeting
