package cache

// Config holds configuration for the redis connection.
type Config struct {
	// Addr is the redis host:port.
	Addr string `mapstructure:"addr" default:"localhost:6379"`
	// Password is the redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the redis logical database.
	DB int `mapstructure:"db" default:"0"`
	// TimeoutSeconds bounds dial, read and write operations.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}
