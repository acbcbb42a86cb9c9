package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"billing-gateway-core/database"
)

type Config struct {
	Database database.DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	Session  SessionConfig
	Gateways map[string]map[string]string
}

type ServerConfig struct {
	Port string
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

type SessionConfig struct {
	Secret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	workerConcurrency := 2
	if raw := os.Getenv("WORKER_CONCURRENCY"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			workerConcurrency = parsed
		} else {
			log.Printf("Warning: invalid WORKER_CONCURRENCY %q, using default %d", raw, workerConcurrency)
		}
	}

	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Server: ServerConfig{
			Port: os.Getenv("SERVER_PORT"),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			WorkerConcurrency: workerConcurrency,
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
		},
		Gateways: map[string]map[string]string{
			"fastcharge": {
				"api_key":     os.Getenv("FASTCHARGE_API_KEY"),
				"merchant_id": os.Getenv("FASTCHARGE_MERCHANT_ID"),
				"environment": os.Getenv("FASTCHARGE_ENVIRONMENT"),
				"use_vault":   os.Getenv("FASTCHARGE_USE_VAULT"),
				"three_ds":    os.Getenv("FASTCHARGE_THREE_DS"),
			},
			"redirectpay": {
				"account_id":     os.Getenv("REDIRECTPAY_ACCOUNT_ID"),
				"signing_secret": os.Getenv("REDIRECTPAY_SIGNING_SECRET"),
			},
		},
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
		log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
	}

	if cfg.Session.Secret == "" {
		log.Printf("Warning: SESSION_SECRET not set, checkout session cookies will not survive restarts")
	}

	return cfg
}

// GatewayMeta returns the configured meta map for one gateway instance.
func (c *Config) GatewayMeta(name string) (map[string]string, error) {
	meta, ok := c.Gateways[name]
	if !ok {
		return nil, fmt.Errorf("no configuration for gateway %s", name)
	}
	return meta, nil
}
