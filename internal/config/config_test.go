package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidrun/internal/llm"
	"droidrun/internal/trajectory"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DROIDRUN_API_KEY", "sk-test")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.True(t, cfg.Reasoning)
	assert.False(t, cfg.Reflection)
	assert.Equal(t, 15, cfg.MaxSteps)
	assert.Equal(t, 15*time.Minute, cfg.Timeout)
	assert.Equal(t, trajectory.LevelNone, cfg.TrajectoryLevel())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DROIDRUN_PROVIDER", "ollama")
	t.Setenv("DROIDRUN_MODEL", "qwen2.5:7b")
	t.Setenv("DROIDRUN_MAX_STEPS", "30")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "qwen2.5:7b", cfg.Model)
	assert.Equal(t, 30, cfg.MaxSteps)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DROIDRUN_API_KEY", "sk-test")
	t.Setenv("DROIDRUN_MODEL", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("model", "gpt-4o-mini", "")
	require.NoError(t, flags.Set("model", "from-flag"))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Model)
}

func TestValidateRejectsBadInput(t *testing.T) {
	base := Config{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		APIKey:     "sk-test",
		MaxSteps:   15,
		Trajectory: "none",
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero max steps", func(c *Config) { c.MaxSteps = 0 }},
		{"bad trajectory level", func(c *Config) { c.Trajectory = "everything" }},
		{"missing api key", func(c *Config) { c.APIKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}

func TestOllamaNeedsNoAPIKey(t *testing.T) {
	cfg := Config{
		Provider:   "ollama",
		Model:      "qwen2.5:7b",
		MaxSteps:   15,
		Trajectory: "step",
	}
	assert.NoError(t, cfg.Validate())
}

func TestLLMConfigMapping(t *testing.T) {
	cfg := Config{
		Provider: "deepseek",
		Model:    "deepseek-chat",
		APIKey:   "sk-test",
		Vision:   true,
	}
	llmCfg := cfg.LLMConfig()
	assert.Equal(t, llm.ProviderDeepSeek, llmCfg.Provider)
	assert.Equal(t, "deepseek-chat", llmCfg.Model)
	assert.True(t, llmCfg.Vision)
}
