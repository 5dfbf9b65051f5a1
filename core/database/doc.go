// Package database handles database connections.
//
// It provides a wrapper around GORM to configure MySQL connections (production)
// or SQLite (tests, single node development) from the application's configuration.
//
// # Connect
//
// Connect establishes the connection, sizes the pool and pings the server. Error
// translation is enabled so unique violations surface as gorm.ErrDuplicatedKey for
// every driver; the waiting store relies on this to report a user already waiting.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
