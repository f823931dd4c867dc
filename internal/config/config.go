// Package config loads service configuration from the environment,
// with an optional local .env file for development.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr   string `env:"MATCHBOOK_ADDR" envDefault:":8088"`
	DBPath string `env:"MATCHBOOK_DB" envDefault:"matchbook.db"`
	Symbol string `env:"MATCHBOOK_SYMBOL" envDefault:"PERP-USD"`

	// Empty = allow all origins (development mode).
	CORSOrigins []string `env:"MATCHBOOK_CORS_ORIGINS" envSeparator:","`

	// Requests per minute per IP; 0 disables rate limiting.
	RateLimit int `env:"MATCHBOOK_RATE_LIMIT" envDefault:"0"`

	// Kafka trade feed; publishing is disabled when no brokers are set.
	KafkaBrokers []string `env:"MATCHBOOK_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"MATCHBOOK_KAFKA_TOPIC" envDefault:"matchbook.trades"`

	Debug bool `env:"MATCHBOOK_DEBUG" envDefault:"false"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
