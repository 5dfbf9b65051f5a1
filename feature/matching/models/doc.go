// Package models defines the matching categories and the persisted matching records.
package models
