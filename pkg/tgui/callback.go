package tgui

import "strings"

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes,
// covering the whole "ns:action:payload" string.
const MaxCallbackDataLen = 64

// Data builds callback data the router understands: "ns:action" with an
// optional ":payload" tail. The payload rides as-is and may itself
// contain colons; the router splits off at most two.
func Data(ns, action, payload string) string {
	ns = strings.TrimSpace(ns)
	action = strings.TrimSpace(action)
	if payload == "" {
		return ns + ":" + action
	}
	return ns + ":" + action + ":" + payload
}
