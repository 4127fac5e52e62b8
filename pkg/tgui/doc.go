// Package tgui builds Telegram messages and inline keyboards.
//
// Callback data uses the ns:action:payload form throughout, and every
// string fed through the message builder is escaped for
// ParseMode="HTML", so views can interpolate user input without
// worrying about markup injection.
package tgui
