package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_INSTANCE_ID", "")
	t.Setenv("AI_CLASSIFY_TIMEOUT", "")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, cfg, Global)
	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, 8*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 15*time.Second, cfg.AI.ClassifyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Memory.LastMessageTTL)
	assert.False(t, cfg.Gateway.HasFallbackCredentials())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_INSTANCE_ID", "inst")
	t.Setenv("GATEWAY_TOKEN", "tok")
	t.Setenv("GATEWAY_CLIENT_TOKEN", "client")
	t.Setenv("GATEWAY_TIMEOUT", "3")
	t.Setenv("AI_CLASSIFY_TIMEOUT", "750ms")
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("HANDOFF_ASSIGN_AGENT", "off")

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.True(t, cfg.Gateway.HasFallbackCredentials())
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 750*time.Millisecond, cfg.AI.ClassifyTimeout)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.False(t, cfg.Handoff.AssignAgent)
}
