// Package assistant is the conversational surface of the bot: the inline
// menu, calendar views, guided add-event and add-birthday flows, photo
// intake and the cat-flavored fallback replies.
//
// It registers its commands, callbacks and message hooks with the router
// and talks to Telegram only through the request's adapter. Proactive
// sends (digests, birthday alerts) live in the reminder engine instead.
package assistant
