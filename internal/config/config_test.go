package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, time.Hour, cfg.MaxReservationTTL)
	assert.Equal(t, 10000, cfg.MaxNumbers)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, "raffle:stats", cfg.StatsPrefix)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_PATH=/tmp/raffle-test.db\nRESERVATION_TTL=5\nSWEEP_ENABLED=true\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("RESERVATION_TTL")
		os.Unsetenv("SWEEP_ENABLED")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/raffle-test.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Minute, cfg.ReservationTTL)
	assert.True(t, cfg.SweepEnabled)
}

func TestLoad_EnvironmentWinsOverDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LISTEN_ADDR=:9999\n"), 0o600))
	t.Setenv("LISTEN_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad ttl", "RESERVATION_TTL", "soon"},
		{"negative ttl", "RESERVATION_TTL", "-3"},
		{"bad bool", "SWEEP_ENABLED", "maybe"},
		{"bad int", "MAX_NUMBERS", "lots"},
		{"zero numbers", "MAX_NUMBERS", "0"},
		{"bad float", "RATE_RPS", "fast"},
		{"max below ttl", "MAX_RESERVATION_TTL", "1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
			assert.Error(t, err)
		})
	}
}

func TestGetenvDuration_GoSyntax(t *testing.T) {
	t.Setenv("RESERVATION_TTL", "90s")
	d, err := getenvDuration("RESERVATION_TTL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}
