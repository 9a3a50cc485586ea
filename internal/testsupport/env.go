package testsupport

import (
	"fmt"
	"os"
	"testing"

	"marketpulse/internal/adapters/config"
)

// LoadClickHouseConfigFromEnv reads ClickHouse settings for integration tests.
// Tests are skipped when CLICKHOUSE_HOST is not set.
func LoadClickHouseConfigFromEnv(t *testing.T) config.ClickHouseConfig {
	t.Helper()

	if os.Getenv("CLICKHOUSE_HOST") == "" {
		t.Skip("integration environment missing, set CLICKHOUSE_HOST to run")
	}

	return config.ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Port:     intValue("CLICKHOUSE_PORT", 9000),
		User:     valueWithDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: valueWithDefault("CLICKHOUSE_DB", "default"),
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		_, err := fmt.Sscanf(val, "%d", &parsed)
		if err == nil {
			return parsed
		}
	}

	return fallback
}
