package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// driverConfig holds the process-level configuration for running the
// kernel as a standalone binary: where to write events/checkpoints and
// how verbosely to log. The simulation's own Config (agents, policies,
// cost rates) is a separate, richer document the kernel itself
// validates; this is only the driver's environment surface.
type driverConfig struct {
	DatabasePath string
	LogLevel     string
	TicksPerDay  int
	NumDays      int
	RNGSeed      int64
}

// loadDriverConfig reads configuration from the environment, loading a
// .env file first if one is present.
func loadDriverConfig() (*driverConfig, error) {
	_ = godotenv.Load()

	cfg := &driverConfig{
		DatabasePath: getEnv("SIMKERNEL_DB_PATH", "./data/simkernel.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		TicksPerDay:  getEnvAsInt("SIMKERNEL_TICKS_PER_DAY", 48),
		NumDays:      getEnvAsInt("SIMKERNEL_NUM_DAYS", 5),
		RNGSeed:      getEnvAsInt64("SIMKERNEL_RNG_SEED", 1),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *driverConfig) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("SIMKERNEL_DB_PATH is required")
	}
	if c.TicksPerDay <= 0 {
		return fmt.Errorf("SIMKERNEL_TICKS_PER_DAY must be > 0")
	}
	if c.NumDays <= 0 {
		return fmt.Errorf("SIMKERNEL_NUM_DAYS must be > 0")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
