package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("AUTH_SERVICE_URL", "http://auth:8000")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "http://auth:8000", cfg.AuthServiceURL)
	assert.NotEmpty(t, cfg.ReplicaID)
	assert.Equal(t, 86400, cfg.RoomTTLSeconds)
	assert.Equal(t, 12, cfg.KingPower)
	assert.Equal(t, 12, cfg.CastlePower)
	assert.Equal(t, 6, cfg.ColorsCount)
	assert.Equal(t, DefaultAlphabet, cfg.Alphabet)
	assert.False(t, cfg.DevelopmentMode)
	assert.Equal(t, "100-M", cfg.RateLimitAPI)
	assert.Equal(t, "60-M", cfg.RateLimitWsIP)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REPLICA_ID", "rooms-3")
	t.Setenv("ROOM_TTL_SECONDS", "3600")
	t.Setenv("DEFAULT_KING_POWER", "20")
	t.Setenv("COLORS_COUNT", "8")
	t.Setenv("DEVELOPMENT_MODE", "true")
	t.Setenv("RATE_LIMIT_API", "10-S")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rooms-3", cfg.ReplicaID)
	assert.Equal(t, 3600, cfg.RoomTTLSeconds)
	assert.Equal(t, 20, cfg.KingPower)
	assert.Equal(t, 8, cfg.ColorsCount)
	assert.True(t, cfg.DevelopmentMode)
	assert.Equal(t, "10-S", cfg.RateLimitAPI)
}

func TestLoadCollectsAllErrors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AUTH_SERVICE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT is required")
	assert.Contains(t, err.Error(), "REDIS_ADDR is required")
	assert.Contains(t, err.Error(), "AUTH_SERVICE_URL is required")
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"port not a number", "PORT", "web", "PORT must be a valid port"},
		{"port out of range", "PORT", "70000", "PORT must be a valid port"},
		{"redis addr no port", "REDIS_ADDR", "localhost", "host:port"},
		{"redis addr bad port", "REDIS_ADDR", "localhost:nope", "host:port"},
		{"ttl not a number", "ROOM_TTL_SECONDS", "soon", "positive integer"},
		{"ttl negative", "ROOM_TTL_SECONDS", "-1", "positive integer"},
		{"alphabet too short", "ROOM_KEY_ALPHABET", "abcdef", "at least 16"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want),
				"error %q should mention %q", err, tc.want)
		})
	}
}
