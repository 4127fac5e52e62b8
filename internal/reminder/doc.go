// Package reminder runs the two periodic checks behind proactive sends:
// the per-user morning digest and the just-after-midnight birthday alert.
//
// The engine owns selection (which users are due right now) and rendering;
// delivery, retries and per-day suppression live in the notifier. Both
// checks register with the task scheduler and read the wall clock only
// once per run.
package reminder
