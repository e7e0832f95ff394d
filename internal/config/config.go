package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinMaxRetries = 1   // At least one attempt per remote call
	MaxAPITimeout = 300 // Per-call timeout ceiling in seconds

	// Default values
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultMaxRetries   = 3
	DefaultRetryDelayMS = 1000
	DefaultAPITimeout   = 0 // No per-call timeout
	DefaultAWSRegion    = "us-east-1"
	DefaultDatadogSite  = "datadoghq.com"
)

// ErrAzureCredentialsMissing is returned when any Azure service principal value is unset
var ErrAzureCredentialsMissing = errors.New("Azure credentials not found in environment variables")

// RetryConfig controls the retry executor
type RetryConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	RetryDelayMS int `yaml:"retry_delay_ms"`
}

// AWSConfig holds AWS settings. Credentials come from the SDK default chain.
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccountID string `yaml:"account_id"`
}

// AzureConfig holds the Azure service principal and the queried subscription
type AzureConfig struct {
	TenantID       string `yaml:"-"`
	ClientID       string `yaml:"-"`
	ClientSecret   string `yaml:"-"`
	SubscriptionID string `yaml:"-"`
}

// GCPConfig holds GCP settings. Credentials come from Application Default Credentials.
type GCPConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
}

// DatadogConfig holds Datadog API credentials
type DatadogConfig struct {
	APIKey string `yaml:"-"`
	AppKey string `yaml:"-"`
	Site   string `yaml:"site"`
}

// Config represents the application configuration
type Config struct {
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
	APITimeout int           `yaml:"api_timeout"` // per-call timeout in seconds, 0 disables
	Retry      RetryConfig   `yaml:"retry"`
	AWS        AWSConfig     `yaml:"aws"`
	Azure      AzureConfig   `yaml:"-"`
	GCP        GCPConfig     `yaml:"gcp"`
	Datadog    DatadogConfig `yaml:"datadog"`
}

// Load reads an optional YAML file, applies defaults and environment overrides,
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		// #nosec G304 -- Config file path is provided by the operator via CLI flag
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment. Existing variables win; missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = DefaultMaxRetries
	}
	if cfg.Retry.RetryDelayMS == 0 {
		cfg.Retry.RetryDelayMS = DefaultRetryDelayMS
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = DefaultAWSRegion
	}
	if cfg.Datadog.Site == "" {
		cfg.Datadog.Site = DefaultDatadogSite
	}
}

// firstEnv returns the first non-empty value among the named variables
func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, target *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s: must be an integer, got %q", name, val)
	}
	*target = i
	return nil
}

// applyEnvOverrides applies environment variable overrides to configuration.
// Vendor credentials are only ever read from the environment.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("OMNICOST_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("OMNICOST_LOG_FORMAT"); val != "" {
		cfg.LogFormat = val
	}
	if err := envInt("OMNICOST_MAX_RETRIES", &cfg.Retry.MaxRetries); err != nil {
		return err
	}
	if err := envInt("OMNICOST_RETRY_DELAY_MS", &cfg.Retry.RetryDelayMS); err != nil {
		return err
	}
	if err := envInt("OMNICOST_API_TIMEOUT", &cfg.APITimeout); err != nil {
		return err
	}

	if val := firstEnv("AWS_REGION", "AWS_DEFAULT_REGION"); val != "" {
		cfg.AWS.Region = val
	}

	cfg.Azure.TenantID = os.Getenv("AZURE_TENANT_ID")
	cfg.Azure.ClientID = os.Getenv("AZURE_CLIENT_ID")
	cfg.Azure.ClientSecret = os.Getenv("AZURE_CLIENT_SECRET")

	cfg.Datadog.APIKey = firstEnv("DD_API_KEY", "DATADOG_API_KEY")
	cfg.Datadog.AppKey = firstEnv("DD_APP_KEY", "DATADOG_APP_KEY")
	if val := os.Getenv("DD_SITE"); val != "" {
		cfg.Datadog.Site = val
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.Retry.MaxRetries < MinMaxRetries {
		return fmt.Errorf("max_retries must be at least %d, got %d", MinMaxRetries, cfg.Retry.MaxRetries)
	}

	if cfg.Retry.RetryDelayMS < 0 {
		return fmt.Errorf("retry_delay_ms cannot be negative, got %d", cfg.Retry.RetryDelayMS)
	}

	if cfg.APITimeout < 0 {
		return fmt.Errorf("api_timeout cannot be negative, got %d", cfg.APITimeout)
	}

	if cfg.APITimeout > MaxAPITimeout {
		return fmt.Errorf("api_timeout should not exceed %d seconds (5 minutes), got %d", MaxAPITimeout, cfg.APITimeout)
	}

	return nil
}

// Validate checks that the Azure service principal is complete
func (c AzureConfig) Validate() error {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return ErrAzureCredentialsMissing
	}
	return nil
}
