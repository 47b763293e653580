package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string   // Base directory for the databases (defaults to "./data")
	Port         int      // HTTP listen port
	LogLevel     string   // zerolog level name
	DevMode      bool     // pretty console logging when true
	Tickers      []string // universe synced by the price scheduler
	SyncSchedule string   // cron expression for the nightly price sync
	SyncPeriod   string   // Yahoo lookback period for syncs (e.g. "1y", "max")
}

// defaultTickers is the SPDR sector ETF universe.
var defaultTickers = []string{
	"XLB", "XLE", "XLF", "XLI", "XLK", "XLP", "XLU", "XLV", "XLY",
}

// Load reads configuration from environment variables. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:      dataDir,
		Port:         getEnvAsInt("PORT", 8001),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		Tickers:      getEnvAsList("TICKERS", defaultTickers),
		SyncSchedule: getEnv("SYNC_SCHEDULE", "0 30 2 * * *"), // 02:30 daily
		SyncPeriod:   getEnv("SYNC_PERIOD", "max"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("ticker universe is empty")
	}
	return nil
}

// HistoryDBPath returns the price history database location.
func (c *Config) HistoryDBPath() string {
	return c.DataDir + "/history.db"
}

// ResultsDBPath returns the results database location.
func (c *Config) ResultsDBPath() string {
	return c.DataDir + "/results.db"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
