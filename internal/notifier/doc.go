// Package notifier provides the async delivery pipeline for outbound
// messages.
//
// Reminder digests and birthday alerts are queued here instead of being sent
// inline: a small worker pool applies a global rate limit, retries transient
// send failures with jittered backoff, and suppresses duplicates. A
// notification carries a target chat, text, send options such as an inline
// keyboard, and optionally an explicit dedup key with a suppress-until
// instant, which is how a per-user digest goes out at most once per day.
// Marks persisted through MarkStore keep that suppression across restarts.
//
// # Transport
//
// Delivery goes through whatever kit.Adapter the app wires in, so the
// pipeline itself never touches a specific messaging platform.
package notifier
