package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"droidrun/internal/llm"
	"droidrun/internal/trajectory"
)

// Config is the fully resolved runtime configuration. Precedence:
// flags > DROIDRUN_* environment > ~/.droidrun/config.yaml > defaults.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`

	Device     string `mapstructure:"device"`
	Vision     bool   `mapstructure:"vision"`
	Reasoning  bool   `mapstructure:"reasoning"`
	Reflection bool   `mapstructure:"reflection"`

	MaxSteps int           `mapstructure:"max_steps"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Debug    bool          `mapstructure:"debug"`

	Trajectory    string `mapstructure:"trajectory"`
	TrajectoryDir string `mapstructure:"trajectory_dir"`
	PersonaDir    string `mapstructure:"persona_dir"`

	MetricsAddr     string `mapstructure:"metrics_addr"`
	Tracing         bool   `mapstructure:"tracing"`
	TracingEndpoint string `mapstructure:"tracing_endpoint"`
}

// Every key needs a default so environment overrides survive Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(llm.ProviderOpenAI))
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("device", "")
	v.SetDefault("vision", false)
	v.SetDefault("reasoning", true)
	v.SetDefault("reflection", false)
	v.SetDefault("max_steps", 15)
	v.SetDefault("timeout", 15*time.Minute)
	v.SetDefault("debug", false)
	v.SetDefault("trajectory", string(trajectory.LevelNone))
	v.SetDefault("trajectory_dir", "trajectories")
	v.SetDefault("persona_dir", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("tracing", false)
	v.SetDefault("tracing_endpoint", "")
}

// Load resolves the configuration. flags may be nil; a missing config file
// is not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".droidrun"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DROIDRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Flag names use dashes where config keys use underscores; bind each key
	// to its flag explicitly so both spellings resolve.
	if flags != nil {
		for _, key := range v.AllKeys() {
			flagName := strings.ReplaceAll(key, "_", "-")
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch llm.Provider(c.Provider) {
	case llm.ProviderOpenAI, llm.ProviderDeepSeek, llm.ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (expected openai, deepseek or ollama)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model must be set")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max-steps must be positive, got %d", c.MaxSteps)
	}
	if _, err := trajectory.ParseLevel(c.Trajectory); err != nil {
		return err
	}
	if llm.Provider(c.Provider) != llm.ProviderOllama && c.APIKey == "" {
		return fmt.Errorf("api key must be set for provider %s (flag --api-key or DROIDRUN_API_KEY)", c.Provider)
	}
	return nil
}

// LLMConfig maps the resolved settings onto the provider factory input.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider: llm.Provider(c.Provider),
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		Vision:   c.Vision,
	}
}

// TrajectoryLevel returns the validated capture level.
func (c *Config) TrajectoryLevel() trajectory.Level {
	level, err := trajectory.ParseLevel(c.Trajectory)
	if err != nil {
		return trajectory.LevelNone
	}
	return level
}
