package main

import (
	"fmt"
	"os"
)

// Config holds all configuration for the discount service.
type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	RedisURL string

	CatalogServiceURL string

	ImageBucket      string
	DiscountTopicARN string
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8091"),
		PostgresUser:      os.Getenv("POSTGRES_USER"),
		PostgresPassword:  os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:        os.Getenv("POSTGRES_DB"),
		PostgresHost:      os.Getenv("POSTGRES_HOST"),
		PostgresPort:      getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:   getEnv("POSTGRES_SSLMODE", "disable"),
		RedisURL:          os.Getenv("REDIS_URL"),
		CatalogServiceURL: os.Getenv("CATALOG_SERVICE_URL"),
		ImageBucket:       os.Getenv("DISCOUNT_IMAGE_BUCKET"),
		DiscountTopicARN:  os.Getenv("DISCOUNT_SNS_TOPIC_ARN"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
