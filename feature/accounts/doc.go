// Package accounts holds users and their credit balances.
//
// Directory implements the profile lookups the matching engine needs and Ledger is the
// only writer of balances. Both are backed by gorm (tables users and credit_ledger).
package accounts
