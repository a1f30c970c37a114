package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string

	// Booking rules
	SlotMinutes        int
	MinDurationMinutes int
	MaxDurationMinutes int

	// Pricing
	PeakStartMinute  int
	PeakEndMinute    int
	PeakSurcharge    float64
	WeekendSurcharge float64
	PartyBaseline    int
	ExtraGuestFee    string

	// Availability cache
	CacheTTL     time.Duration
	CacheEntries int

	// Concurrency
	LockWait      time.Duration
	RetryAttempts int
	RetryBase     time.Duration
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win either way
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:              os.Getenv("DB_DSN"),
		Environment:        getEnv("ENV", "development"),
		SlotMinutes:        getEnvInt("SLOT_MINUTES", 60),
		MinDurationMinutes: getEnvInt("MIN_DURATION_MINUTES", 30),
		MaxDurationMinutes: getEnvInt("MAX_DURATION_MINUTES", 180),
		PeakStartMinute:    getEnvInt("PEAK_START_MINUTE", 18*60),
		PeakEndMinute:      getEnvInt("PEAK_END_MINUTE", 22*60),
		PeakSurcharge:      getEnvFloat("PEAK_SURCHARGE", 0.2),
		WeekendSurcharge:   getEnvFloat("WEEKEND_SURCHARGE", 0.1),
		PartyBaseline:      getEnvInt("PARTY_BASELINE", 2),
		ExtraGuestFee:      getEnv("EXTRA_GUEST_FEE", "5.00"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 60*time.Second),
		CacheEntries:       getEnvInt("CACHE_ENTRIES", 1024),
		LockWait:           getEnvDuration("LOCK_WAIT", 5*time.Second),
		RetryAttempts:      getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBase:          getEnvDuration("RETRY_BASE", 100*time.Millisecond),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("SLOT_MINUTES must be positive, got %d", cfg.SlotMinutes)
	}
	if cfg.MinDurationMinutes > cfg.MaxDurationMinutes {
		return nil, fmt.Errorf("MIN_DURATION_MINUTES exceeds MAX_DURATION_MINUTES")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid %s=%q, using default %v", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid %s=%q, using default %s", key, v, def)
	}
	return def
}
