package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	DatabasePath string

	LogLevel     string
	LogFile      string
	LogErrorFile string
	LogConsole   bool

	ReservationTTL    time.Duration
	MaxReservationTTL time.Duration
	MaxNumbers        int

	RateRPS   float64
	RateBurst int

	SweepEnabled  bool
	SweepSchedule string

	StatsRedisAddr     string
	StatsRedisPassword string
	StatsRedisDB       int
	StatsPrefix        string
}

// Load reads the optional .env files and then the process environment.
// A missing .env is not an error; a malformed one is.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{
		ListenAddr:    getenvDefault("LISTEN_ADDR", ":8080"),
		DatabasePath:  getenvDefault("DATABASE_PATH", "persistent.db"),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),
		LogErrorFile:  os.Getenv("LOG_ERROR_FILE"),
		SweepSchedule: getenvDefault("SWEEP_SCHEDULE", "@every 1m"),
		StatsPrefix:   getenvDefault("STATS_PREFIX", "raffle:stats"),

		StatsRedisAddr:     os.Getenv("STATS_REDIS_ADDR"),
		StatsRedisPassword: os.Getenv("STATS_REDIS_PASSWORD"),
	}

	var err error
	if cfg.LogConsole, err = getenvBool("LOG_CONSOLE", true); err != nil {
		return nil, err
	}
	if cfg.ReservationTTL, err = getenvDuration("RESERVATION_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxReservationTTL, err = getenvDuration("MAX_RESERVATION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxNumbers, err = getenvInt("MAX_NUMBERS", 10000); err != nil {
		return nil, err
	}
	if cfg.RateRPS, err = getenvFloat("RATE_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getenvInt("RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.SweepEnabled, err = getenvBool("SWEEP_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.StatsRedisDB, err = getenvInt("STATS_REDIS_DB", 0); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("RESERVATION_TTL must be positive, got %s", c.ReservationTTL)
	}
	if c.MaxReservationTTL < c.ReservationTTL {
		return fmt.Errorf("MAX_RESERVATION_TTL (%s) is shorter than RESERVATION_TTL (%s)", c.MaxReservationTTL, c.ReservationTTL)
	}
	if c.MaxNumbers <= 0 {
		return fmt.Errorf("MAX_NUMBERS must be positive, got %d", c.MaxNumbers)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// getenvDuration accepts Go durations ("90s") or a bare number of minutes.
func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if minutes, err := strconv.Atoi(v); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
