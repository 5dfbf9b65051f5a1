// Package queue implements the Queue Cache: one ordered set of waiting users per category.
//
// The score of a member is its enqueue time in unix milliseconds, so a user pushed back
// after a failed pairing regains its original position. DequeueOldest and Remove are the
// claim primitives of the matching engine: a member can be claimed by exactly one caller.
//
// RedisCache is used in production (ZADD NX, ZPOPMIN, ZREM). MemoryCache backs tests and
// single-node development.
package queue
