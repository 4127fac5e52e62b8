// Package storage persists purrbot's users, calendar entries, photos, and
// notification marks in a single SQLite database file.
//
// All access goes through short-lived statements on one connection; the
// schema is embedded and applied idempotently at open.
package storage
