package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hupe1980/orchestra/orchestrator"
)

// EnvPrefix prefixes environment overrides, e.g. ORCHESTRA_ORCHESTRATOR_MAX_RETRIES.
const EnvPrefix = "ORCHESTRA"

// Config is the root configuration document.
type Config struct {
	Orchestrator orchestrator.Config    `mapstructure:"orchestrator" yaml:"orchestrator"`
	Agents       map[string]AgentConfig `mapstructure:"agents" yaml:"agents" validate:"dive"`
	Synthesis    SynthesisConfig        `mapstructure:"synthesis" yaml:"synthesis"`
	Logging      LoggingConfig          `mapstructure:"logging" yaml:"logging"`
	History      HistoryConfig          `mapstructure:"history" yaml:"history"`
}

// AgentConfig declares a model-backed agent bound to a role.
type AgentConfig struct {
	Provider    string   `mapstructure:"provider" yaml:"provider" validate:"required,oneof=openai anthropic mock"`
	Model       string   `mapstructure:"model" yaml:"model"`
	APIKey      string   `mapstructure:"api_key" yaml:"api_key"`
	Instruction string   `mapstructure:"instruction" yaml:"instruction"`
	Prompt      string   `mapstructure:"prompt" yaml:"prompt"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int64    `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	MinLength   int      `mapstructure:"min_length" yaml:"min_length" validate:"gte=0"`
	Stream      bool     `mapstructure:"stream" yaml:"stream"`
	// RateLimit caps model calls of this agent per minute. Zero disables it.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	// Responses holds canned completions of the mock provider keyed by
	// prompt. The loader lower-cases map keys, so prompts should be lower case.
	Responses map[string]string `mapstructure:"responses" yaml:"responses"`
}

// SynthesisConfig configures the default synthesizer.
type SynthesisConfig struct {
	Required  []string `mapstructure:"required" yaml:"required"`
	Optional  []string `mapstructure:"optional" yaml:"optional"`
	MinLength int      `mapstructure:"min_length" yaml:"min_length" validate:"gte=0"`
	// Judge names an agent whose model grades the merged output.
	Judge          string  `mapstructure:"judge" yaml:"judge"`
	JudgeThreshold float64 `mapstructure:"judge_threshold" yaml:"judge_threshold" validate:"gte=0,lte=10"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// HistoryConfig configures run history persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Orchestrator: orchestrator.DefaultConfig,
		Agents:       map[string]AgentConfig{},
		Synthesis:    SynthesisConfig{JudgeThreshold: 7},
		Logging:      LoggingConfig{Level: "info", Format: "text"},
		History:      HistoryConfig{Enabled: true},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Synthesis.Judge != "" {
		if _, ok := c.Agents[c.Synthesis.Judge]; !ok {
			return fmt.Errorf("invalid configuration: judge %q is not a configured agent", c.Synthesis.Judge)
		}
	}
	return nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	// EnvFiles are loaded with godotenv before reading the configuration.
	// Missing files are ignored. Defaults to ".env".
	EnvFiles []string
	// EnvPrefix overrides EnvPrefix.
	EnvPrefix string
}

// Load reads the configuration file at path (optional), applies environment
// overrides and validates the result.
func Load(path string, optFns ...func(o *LoadOptions)) (*Config, error) {
	opts := LoadOptions{
		EnvFiles:  []string{".env"},
		EnvPrefix: EnvPrefix,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := LoadDotEnv(opts.EnvFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	o := d.Orchestrator
	v.SetDefault("orchestrator.execution_mode", string(o.ExecutionMode))
	v.SetDefault("orchestrator.error_mode", string(o.ErrorMode))
	v.SetDefault("orchestrator.max_retries", o.MaxRetries)
	v.SetDefault("orchestrator.invocation_timeout", o.InvocationTimeout)
	v.SetDefault("orchestrator.run_timeout", o.RunTimeout)
	v.SetDefault("orchestrator.max_concurrency", o.MaxConcurrency)
	v.SetDefault("orchestrator.cancel_siblings", o.CancelSiblings)
	v.SetDefault("orchestrator.base_delay", o.BaseDelay)
	v.SetDefault("orchestrator.max_delay", o.MaxDelay)
	v.SetDefault("orchestrator.jitter", o.Jitter)

	v.SetDefault("synthesis.min_length", d.Synthesis.MinLength)
	v.SetDefault("synthesis.judge", d.Synthesis.Judge)
	v.SetDefault("synthesis.judge_threshold", d.Synthesis.JudgeThreshold)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
}

// LoadDotEnv loads environment variables from the given .env files.
// Missing files are skipped; existing variables are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
