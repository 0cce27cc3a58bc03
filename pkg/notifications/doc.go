// Package notifications stores and delivers the user-facing signals of the
// metering engine: meeting cap warnings, forced closes, exhausted quotas and
// plan changes.
//
// Manager.Send persists first and delivers second, so a failed real-time
// delivery never loses a notification. BroadcastDeliverer fans notifications
// out in-process to per-user subscribers held in an LRU cache
// (hashicorp/golang-lru).
package notifications
