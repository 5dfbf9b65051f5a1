// Package config provides configuration management for the matchmaker.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults live next to each setting as struct tags.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP API and websocket ports
//   - Database: MySQL (or SQLite) connection details
//   - Redis: queue cache, connection registry and event bus backend
//   - Storage: S3/MinIO credentials for archived reconcile reports
//   - Auth: bearer token secret
//   - Events: event bus driver (memory, redis, kafka)
//   - Matching: charged category, cost and periodic task intervals
//   - Realtime: connection expiry and sweep interval
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Matching.Cost)
package config
