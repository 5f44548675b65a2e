package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
	assert.Contains(t, cfg.AllowedOrigins, "http://localhost:8080")
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "https://relay.example.com, http://localhost:3000")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, []string{"https://relay.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")

	cfg := NewConfigFromEnv()
	assert.Equal(t, int64(512), cfg.MaxMessageSize)

	t.Setenv("MAX_MESSAGE_SIZE", "-5")
	cfg = NewConfigFromEnv()
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
}

func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{Port: "", MaxMessageSize: -1})

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
}

func TestSetConfigNilResetsDefaults(t *testing.T) {
	SetConfig(&Config{Port: ":7000", MaxMessageSize: 64})
	SetConfig(nil)

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
}

func TestCurrentConfigReturnsCopy(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{AllowedOrigins: []string{"http://localhost:8080"}})

	cfg := currentConfig()
	require.NotEmpty(t, cfg.AllowedOrigins)
	cfg.AllowedOrigins[0] = "http://evil.example.com"

	assert.Equal(t, "http://localhost:8080", currentConfig().AllowedOrigins[0])
}
