package events

import (
	"fmt"

	"matchmaker/core/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
)

// Open builds the bus selected by cfg.Driver. client is only used by the redis driver.
func Open(cfg config.EventsConfig, client redis.UniversalClient, logger *zap.Logger) (Bus, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryBus(logger), nil
	case DriverRedis, "":
		if client == nil {
			return nil, fmt.Errorf("redis event bus requires a redis client")
		}
		return NewRedisBus(client, cfg.Channel, logger), nil
	case DriverKafka:
		brokers := cfg.BrokerList()
		if len(brokers) == 0 {
			return nil, fmt.Errorf("kafka event bus requires at least one broker")
		}
		return NewKafkaBus(brokers, cfg.Channel, cfg.GroupID, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event driver: %s", cfg.Driver)
	}
}
