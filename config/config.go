// Package config loads runtime settings from the environment, with an
// optional .env file for local development. The core never reads these; they
// shape the gateway and the egress pipeline around it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Host     string
	Port     string
	LogLevel string

	// Empty broker list disables both Kafka paths.
	KafkaBrokers    []string
	TradeTopic      string
	MarketDataTopic string
	OutboxDir       string

	EventBuffer int
	DepthLimit  int
}

// Load reads the .env file if present, then the environment, applying
// defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:            getStr("HOST", "0.0.0.0"),
		Port:            getStr("PORT", "8000"),
		LogLevel:        getStr("LOG_LEVEL", "info"),
		TradeTopic:      getStr("TRADE_TOPIC", "exchange.trades"),
		MarketDataTopic: getStr("MARKET_DATA_TOPIC", "exchange.marketdata"),
		OutboxDir:       getStr("OUTBOX_DIR", "./outbox_data"),
		EventBuffer:     getInt("EVENT_BUFFER", 1024),
		DepthLimit:      getInt("DEPTH_LIMIT", 10),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.EventBuffer <= 0 {
		return nil, fmt.Errorf("config: EVENT_BUFFER must be positive")
	}
	if cfg.DepthLimit <= 0 {
		return nil, fmt.Errorf("config: DEPTH_LIMIT must be positive")
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP gateway.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// KafkaEnabled reports whether the egress pipeline should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
