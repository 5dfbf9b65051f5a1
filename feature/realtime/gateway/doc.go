// Package gateway pushes matchmaking events to connected users.
//
// Gateway subscribes to the event bus and resolves each user's live connections through
// the connection registry. A paired event produces a match_found message for both users
// carrying the partner's public profile with the photo locked. Requested and cancelled
// events are acknowledged to the user's own connections. Users without a live
// connection miss the message.
//
// Hub is the websocket endpoint. Clients connect to /ws?token=<jwt>, and may send
// request_match, cancel_match, status and ping commands:
//
//	{"type": "request_match", "requestId": "r1", "category": "1"}
//
// Every connection stays bound in the registry while open; the registry sweep closes
// connections whose binding expired.
package gateway
