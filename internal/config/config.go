// Package config handles configuration loading for DiligenceOps.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DILIGENCEOPS_API_PORT.
const EnvPrefix = "DILIGENCEOPS"

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm" json:"llm"`
	EDGAR   EDGARConfig   `mapstructure:"edgar"   yaml:"edgar" json:"edgar"`
	API     APIConfig     `mapstructure:"api"     yaml:"api" json:"api"`
	Output  OutputConfig  `mapstructure:"output"  yaml:"output" json:"output"`
	Store   StoreConfig   `mapstructure:"store"   yaml:"store" json:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// LLMConfig holds narrative-generation provider configuration.
type LLMConfig struct {
	Primary       string  `mapstructure:"primary"        yaml:"primary" json:"primary"` // "openai"
	OpenAIKey     string  `mapstructure:"openai_key"     yaml:"openai_key" json:"-"`
	BaseURL       string  `mapstructure:"base_url"       yaml:"base_url" json:"base_url"`
	Model         string  `mapstructure:"model"          yaml:"model" json:"model"`
	FallbackModel string  `mapstructure:"fallback_model" yaml:"fallback_model" json:"fallback_model"`
	Temperature   float64 `mapstructure:"temperature"    yaml:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"     yaml:"max_tokens" json:"max_tokens"`
}

// EDGARConfig holds SEC EDGAR client and ingestion settings.
type EDGARConfig struct {
	UserAgent      string  `mapstructure:"user_agent"      yaml:"user_agent" json:"user_agent"`
	RateLimit      float64 `mapstructure:"rate_limit"      yaml:"rate_limit" json:"rate_limit"` // requests per second
	TimeoutSec     int     `mapstructure:"timeout_sec"     yaml:"timeout_sec" json:"timeout_sec"`
	LookbackMonths int     `mapstructure:"lookback_months" yaml:"lookback_months" json:"lookback_months"`
	MaxForm4       int     `mapstructure:"max_form4"       yaml:"max_form4" json:"max_form4"`
	Max13G         int     `mapstructure:"max_13g"         yaml:"max_13g" json:"max_13g"`
	ProxyBudget    int     `mapstructure:"proxy_budget"    yaml:"proxy_budget" json:"proxy_budget"`    // bytes sent to governance extraction
	RiskTextLimit  int     `mapstructure:"risk_text_limit" yaml:"risk_text_limit" json:"risk_text_limit"` // bytes of Item 1A sent to classification
	OfflineDir     string  `mapstructure:"offline_dir"     yaml:"offline_dir" json:"offline_dir"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host" json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port" json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// OutputConfig holds artifact output settings.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// StoreConfig holds run-store settings.
type StoreConfig struct {
	Path     string `mapstructure:"path"      yaml:"path" json:"path"`
	InMemory bool   `mapstructure:"in_memory" yaml:"in_memory" json:"in_memory"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level" json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.diligenceops/config.yaml (home directory)
//  3. /etc/diligenceops/config.yaml (system)
//
// Environment variables override config file values.
// Format: DILIGENCEOPS_<SECTION>_<KEY>, e.g., DILIGENCEOPS_API_PORT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".diligenceops"))
	v.AddConfigPath("/etc/diligenceops")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Defaults returns the configuration with no file or environment applied.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories. An existing file is not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.fallback_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 4096)

	// EDGAR defaults (SEC fair-access policy: ≤10 req/s, identifying UA)
	v.SetDefault("edgar.user_agent", "DiligenceOps research@diligenceops.dev")
	v.SetDefault("edgar.rate_limit", 10.0)
	v.SetDefault("edgar.timeout_sec", 30)
	v.SetDefault("edgar.lookback_months", 12)
	v.SetDefault("edgar.max_form4", 50)
	v.SetDefault("edgar.max_13g", 30)
	v.SetDefault("edgar.proxy_budget", 50000)
	v.SetDefault("edgar.risk_text_limit", 45000)
	v.SetDefault("edgar.offline_dir", "examples")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Output and store defaults
	v.SetDefault("output.dir", "pipeline_output")
	v.SetDefault("store.path", filepath.Join("pipeline_output", ".runs"))
	v.SetDefault("store.in_memory", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The bare OPENAI_API_KEY is honoured when the prefixed variable is unset.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if ua := os.Getenv("SEC_USER_AGENT"); ua != "" {
		cfg.EDGAR.UserAgent = ua
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
