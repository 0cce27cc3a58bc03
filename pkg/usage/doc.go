// Package usage aggregates metered consumption (meeting minutes, meeting
// counts, AI spend) inside billing periods and records priced AI calls.
//
// Aggregates are always read from the store; nothing is cached between calls,
// so two decisions made back to back see each other's effects.
package usage
