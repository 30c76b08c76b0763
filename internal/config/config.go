// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// EncryptionKey is the 32-byte AES key for credential encryption, or nil
	// when INTEGRATIONHUB_ENCRYPTION_KEY is unset. The composition root
	// decides whether a nil key is fatal (production) or downgraded to an
	// ephemeral key (development).
	EncryptionKey []byte
	Environment   string
	ListenAddr    string
	DBPath        string

	ExternalAPIURL        string
	ExternalAPITimeout    time.Duration
	ExternalAPIMaxRetries int
	APIKeyLength          int
}

// IsProduction reports whether the configured environment is "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables and returns a validated Config.
// INTEGRATIONHUB_ENCRYPTION_KEY is optional here (see Config.EncryptionKey) but must
// be valid base64 of exactly 32 bytes when present. Optional variables with defaults:
// INTEGRATIONHUB_ENVIRONMENT (development), INTEGRATIONHUB_LISTEN_ADDR (127.0.0.1:8080),
// INTEGRATIONHUB_DB_PATH (integrationhub.db), INTEGRATIONHUB_EXTERNAL_API_URL
// (https://jsonplaceholder.typicode.com), INTEGRATIONHUB_EXTERNAL_API_TIMEOUT (30s),
// INTEGRATIONHUB_EXTERNAL_API_MAX_RETRIES (3), INTEGRATIONHUB_API_KEY_LENGTH (32).
func Load() (*Config, error) {
	var encryptionKey []byte
	if v, ok := os.LookupEnv("INTEGRATIONHUB_ENCRYPTION_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("INTEGRATIONHUB_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("INTEGRATIONHUB_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		encryptionKey = key
	}

	environment := "development"
	if v, ok := os.LookupEnv("INTEGRATIONHUB_ENVIRONMENT"); ok && v != "" {
		environment = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("INTEGRATIONHUB_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "integrationhub.db"
	if v, ok := os.LookupEnv("INTEGRATIONHUB_DB_PATH"); ok {
		dbPath = v
	}

	externalAPIURL := "https://jsonplaceholder.typicode.com"
	if v, ok := os.LookupEnv("INTEGRATIONHUB_EXTERNAL_API_URL"); ok && v != "" {
		externalAPIURL = v
	}

	externalAPITimeout := 30 * time.Second
	if v, ok := os.LookupEnv("INTEGRATIONHUB_EXTERNAL_API_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("INTEGRATIONHUB_EXTERNAL_API_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("INTEGRATIONHUB_EXTERNAL_API_TIMEOUT must be positive, got %q", v)
		}
		externalAPITimeout = parsed
	}

	maxRetries := 3
	if v, ok := os.LookupEnv("INTEGRATIONHUB_EXTERNAL_API_MAX_RETRIES"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("INTEGRATIONHUB_EXTERNAL_API_MAX_RETRIES must be a positive integer, got %q", v)
		}
		maxRetries = parsed
	}

	apiKeyLength := 32
	if v, ok := os.LookupEnv("INTEGRATIONHUB_API_KEY_LENGTH"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 16 {
			return nil, fmt.Errorf("INTEGRATIONHUB_API_KEY_LENGTH must be an integer >= 16, got %q", v)
		}
		apiKeyLength = parsed
	}

	return &Config{
		EncryptionKey:         encryptionKey,
		Environment:           environment,
		ListenAddr:            listenAddr,
		DBPath:                dbPath,
		ExternalAPIURL:        externalAPIURL,
		ExternalAPITimeout:    externalAPITimeout,
		ExternalAPIMaxRetries: maxRetries,
		APIKeyLength:          apiKeyLength,
	}, nil
}
