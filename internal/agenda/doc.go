// Package agenda holds the calendar domain: entities, date/clock codecs,
// recurrence matching for birthdays, due checks for events, and the
// presentation-neutral ordering rules.
//
// Everything here is pure: no clock reads, no storage, no transport.
// Callers pass "now" explicitly.
package agenda
