// Package utils provides small helpers shared by the HTTP and websocket surfaces,
// such as normalizing loosely typed JSON input.
package utils
