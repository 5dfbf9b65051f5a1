package config

import (
	"reflect"
	"strings"

	"matchmaker/core/cache"
	"matchmaker/core/database"
	"matchmaker/core/logger"
	"matchmaker/core/middleware/auth"
	"matchmaker/core/server"
	"matchmaker/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP and websocket listeners.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage used to archive reports.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Redis holds configuration for the redis connection.
	Redis cache.Config `mapstructure:"redis"`
	// Auth holds configuration for bearer token verification.
	Auth auth.Config `mapstructure:"auth"`
	// Events selects and configures the event bus backend.
	Events EventsConfig `mapstructure:"events"`
	// Matching holds the pairing policy and periodic task intervals.
	Matching MatchingConfig `mapstructure:"matching"`
	// Realtime holds connection registry settings.
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// EventsConfig selects the event bus backend.
type EventsConfig struct {
	// Driver is one of memory, redis, kafka.
	Driver string `mapstructure:"driver" default:"redis"`
	// Channel is the redis channel or kafka topic events are published on.
	Channel string `mapstructure:"channel" default:"matchmaking.events"`
	// Brokers is a comma separated list of kafka brokers.
	Brokers string `mapstructure:"brokers" default:"localhost:9092"`
	// GroupID is the kafka consumer group; each instance should use its own.
	GroupID string `mapstructure:"group_id" default:""`
}

// BrokerList splits Brokers on commas.
func (c EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// MatchingConfig holds the pairing policy.
type MatchingConfig struct {
	// ChargedCategory is the category whose member pays for a pairing.
	ChargedCategory string `mapstructure:"charged_category" default:"1"`
	// Cost is the number of credits charged per pairing.
	Cost int64 `mapstructure:"cost" default:"10"`
	// UpfrontCheck enables the balance check when a charged user enqueues.
	UpfrontCheck bool `mapstructure:"upfront_check" default:"true"`
	// QueuePrefix namespaces the redis sorted sets.
	QueuePrefix string `mapstructure:"queue_prefix" default:"matchmaking"`
	// BatchIntervalSeconds is the batch pairing period.
	BatchIntervalSeconds int `mapstructure:"batch_interval_seconds" default:"10"`
	// ReconcileIntervalSeconds is the reconciliation period.
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds" default:"60"`
	// ReconcileGraceSeconds leaves fresh store entries alone while a request is in flight.
	ReconcileGraceSeconds int `mapstructure:"reconcile_grace_seconds" default:"5"`
}

// RealtimeConfig holds connection registry settings.
type RealtimeConfig struct {
	// ConnectionTTLSeconds is how long a binding lives without a refresh.
	ConnectionTTLSeconds int `mapstructure:"connection_ttl_seconds" default:"90"`
	// SweepIntervalSeconds is the expiry sweep period.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" default:"30"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. MATCHING_COST -> matching.cost)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
