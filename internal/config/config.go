package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bazari/settlement/internal/escrow"
)

// Config is the full daemon configuration, read from the environment once at
// startup. Numeric parse failures abort the process rather than surfacing
// per-call: these are process-wide constants.
type Config struct {
	DatabaseURL string
	ChainWSURL  string
	NATSURL     string
	RedisURL    string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	AdminAddr string

	SyncInterval    time.Duration
	SweepInterval   time.Duration
	CallTimeout     time.Duration
	SyncParallelism int64
	DryRun          bool

	Escrow escrow.Config
}

// Load reads and validates configuration from the environment.
// defaultAdminAddr is the per-daemon fallback for ADMIN_ADDR: the daemons
// must not share a port default or they cannot be colocated.
func Load(defaultAdminAddr string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ChainWSURL:   getEnv("CHAIN_WS_URL", "ws://localhost:9944"),
		NATSURL:      os.Getenv("NATS_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		InfluxURL:    os.Getenv("INFLUX_URL"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    getEnv("INFLUX_ORG", "settlement"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "workers"),
		AdminAddr:    getEnv("ADMIN_ADDR", defaultAdminAddr),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.SyncInterval, err = getDuration("REPUTATION_SYNC_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("ESCROW_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = getDuration("CHAIN_CALL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	parallelism, err := getInt("REPUTATION_SYNC_PARALLELISM", 1)
	if err != nil {
		return nil, err
	}
	cfg.SyncParallelism = int64(parallelism)

	cfg.DryRun = os.Getenv("SETTLEMENT_DRY_RUN") == "true"

	safetyMargin, err := getInt("ESCROW_SAFETY_MARGIN_DAYS", escrow.DefaultSafetyMarginDays)
	if err != nil {
		return nil, err
	}
	maxDays, err := getInt("ESCROW_MAX_DAYS", escrow.DefaultMaxEscrowDays)
	if err != nil {
		return nil, err
	}
	defaultDays, err := getInt("ESCROW_DEFAULT_DAYS", escrow.DefaultDefaultDeliveryDays)
	if err != nil {
		return nil, err
	}
	blockSeconds, err := getInt("CHAIN_BLOCK_SECONDS", 6)
	if err != nil {
		return nil, err
	}
	if blockSeconds <= 0 || 86_400%blockSeconds != 0 {
		return nil, fmt.Errorf("CHAIN_BLOCK_SECONDS must be a positive divisor of 86400, got %d", blockSeconds)
	}

	cfg.Escrow = escrow.Config{
		SafetyMarginDays:    safetyMargin,
		MaxEscrowDays:       maxDays,
		DefaultDeliveryDays: defaultDays,
		BlocksPerDay:        86_400 / blockSeconds,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q: %w", key, v, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 1h, got %q: %w", key, v, err)
	}
	return parsed, nil
}
