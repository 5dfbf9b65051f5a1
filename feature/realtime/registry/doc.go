// Package registry tracks which live connections belong to which user.
//
// Bindings expire unless refreshed. Sweep removes expired bindings and fires the
// OnExpire hooks so the websocket hub can close the dead sockets. MemoryRegistry serves a
// single gateway instance; RedisRegistry shares bindings between instances and keeps its
// multi-key updates atomic with Lua scripts.
package registry
