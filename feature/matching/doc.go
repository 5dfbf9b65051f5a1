// Package matching exposes the matchmaking engine over HTTP.
//
// # Routes
//
// User routes require a bearer token whose subject is the user id:
//
//	POST   /matching/request   {"category": "1", "extra": {...}}
//	DELETE /matching/request
//	GET    /matching/status
//
// Operator routes require the X-API-Key header:
//
//	POST /matching/batch
//	POST /matching/reconcile/:category?dry_run=true
//
// Failure kinds map to HTTP statuses through StatusCode; the body is always the
// engine result.
package matching
