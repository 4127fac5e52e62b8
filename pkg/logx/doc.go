// Package logx is purrbot's logging layer, a thin wrapper over zerolog
// that fans each record out to the configured sinks.
//
// The console writer keeps interactive output short: time, level,
// caller, message. The file sink appends full JSON records. An optional
// Telegram sink mirrors records at or above a minimum level into a
// chat, rate limited so a failure loop cannot flood the group.
package logx
