// Package server holds the listener configuration.
//
// The HTTP API (Fiber) and the websocket gateway (gorilla/websocket) listen on
// separate ports because the websocket upgrade needs a net/http server.
package server
