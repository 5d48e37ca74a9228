package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.FastInterval)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.MaintenanceInterval)
	assert.Equal(t, 180*24*time.Hour, cfg.NoticeRetention)
}

func TestLoad_DurationOverride(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("RECONCILE_FAST_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.FastInterval)
}

func TestLoad_MalformedDurationFailsStartup(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"fast interval", "RECONCILE_FAST_INTERVAL"},
		{"sweep interval", "RECONCILE_SWEEP_INTERVAL"},
		{"maintenance interval", "MAINTENANCE_INTERVAL"},
		{"notice retention", "NOTICE_RETENTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", "memory")
			t.Setenv(tt.key, "5 minutes")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_RejectsUnknownStoreBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongodb")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}
