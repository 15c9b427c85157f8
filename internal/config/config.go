package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Build    BuildConfig    `mapstructure:"build"`
	Repair   RepairConfig   `mapstructure:"repair"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	EmbedModel  string  `mapstructure:"embed_model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Secondary is the fallback used when the primary provider fails.
	// Unset fields inherit from the primary.
	Secondary LLMOverride `mapstructure:"secondary"`
}

// LLMOverride selectively replaces primary provider settings.
type LLMOverride struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ResolveSecondary returns the secondary LLM configuration with unset
// fields inherited from the primary. Returns false when no secondary
// provider is configured.
func (c LLMConfig) ResolveSecondary() (LLMConfig, bool) {
	if c.Secondary.Provider == "" {
		return LLMConfig{}, false
	}
	resolved := c
	resolved.Provider = c.Secondary.Provider
	if c.Secondary.Model != "" {
		resolved.Model = c.Secondary.Model
	}
	if c.Secondary.APIKey != "" {
		resolved.APIKey = c.Secondary.APIKey
	}
	if c.Secondary.BaseURL != "" {
		resolved.BaseURL = c.Secondary.BaseURL
	}
	return resolved, true
}

type BuildConfig struct {
	Command        string        `mapstructure:"command"`
	InstallCommand string        `mapstructure:"install_command"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type RepairConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MemoryConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// MetricsConfig controls the Prometheus endpoint the worker exposes.
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OutputPath string `mapstructure:"output_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}
	if c.Repair.MaxAttempts < 0 {
		warnings = append(warnings, fmt.Sprintf("repair max_attempts %d is negative", c.Repair.MaxAttempts))
	}
	if c.Build.Command == "" {
		warnings = append(warnings, "build command is empty, the default 'npm run build' will be used")
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build.command", "npm run build")
	v.SetDefault("build.install_command", "npm install --no-audit --no-fund")
	v.SetDefault("build.timeout", 5*time.Minute)
	v.SetDefault("repair.max_attempts", 3)
	v.SetDefault("repair.timeout", 5*time.Minute)
	v.SetDefault("memory.collection", "mend_fixes")
	v.SetDefault("temporal.task_queue", "mend-repair")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("MEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// LoadOrDefault loads the given path when it exists and otherwise returns
// a config built from defaults and environment variables only.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
