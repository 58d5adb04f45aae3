package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the API server and the analytics consumer
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	GinMode  string `env:"GIN_MODE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MongoURI             string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB              string        `env:"MONGO_DB" envDefault:"promo_redemption"`
	MongoTxMaxCommitTime time.Duration `env:"MONGO_TX_MAX_COMMIT_TIME" envDefault:"5s"`

	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	PromoAppliedTopic   string        `env:"KAFKA_PROMO_APPLIED_TOPIC" envDefault:"promo-code-applied"`
	ConsumerGroup       string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"promo-usage-materializer"`
	EventPublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" envDefault:"5s"`

	// RedisAddr empty disables the usage count cache
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	UsageCacheTTL time.Duration `env:"USAGE_CACHE_TTL" envDefault:"30s"`

	// JaegerEndpoint empty keeps tracing local (ids propagate, nothing is exported)
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`

	// MaxHandleAttempts bounds consumer retries per event; 0 retries forever
	MaxHandleAttempts int `env:"KAFKA_MAX_HANDLE_ATTEMPTS" envDefault:"10"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the value of key or fallback when it is unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
