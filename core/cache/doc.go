// Package cache builds the redis client shared by the queue cache, the connection
// registry and the redis event bus.
package cache
