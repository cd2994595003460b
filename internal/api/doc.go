// Package api serves the board over HTTP.
//
// Routes:
//
//	GET    /queue            all slots
//	POST   /queue            {"action":"initialize"} creates missing slots
//	GET    /queue/{id}       one slot
//	PATCH  /queue/{id}       partial update {text?, checked?, rowIndex?}
//	DELETE /queue/{id}       clear the slot's text
//	GET    /history?limit=N  newest history entries
//	GET    /ws               broadcast relay (WebSocket)
//
// Every request is rate limited per client IP. Errors are JSON objects of
// the form {"error": "..."}.
package api
