// Package rooms stores the private rooms opened for paired users.
package rooms
