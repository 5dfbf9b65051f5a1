// Package waiting implements the Durable Waiting Store on gorm.
//
// At most one active entry exists per user. The rule is enforced by the database through a
// unique index on a nullable column that mirrors the user id while the entry is active and
// is cleared on deactivation. Entries are never deleted, which keeps a history of every
// request next to the pairings table.
package waiting
