package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = ".gareport"
	ConfigFileName = "config.yaml"

	// HomeEnv overrides the config directory
	HomeEnv        = "GAREPORT_HOME"
	CredentialsEnv = "GAREPORT_CREDENTIALS"
	LogLevelEnv    = "GAREPORT_LOG_LEVEL"
	LogFormatEnv   = "GAREPORT_LOG_FORMAT"
)

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *AppConfig {
	now := time.Now()
	return &AppConfig{
		Log: LogConfig{Level: "info", Format: "console"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			MaxRetries:        5,
		},
		Cache: CacheConfig{
			MetadataTTLHours: 24,
			ReportTTLHours:   1,
			CatalogEntries:   16,
		},
		Report: ReportConfig{
			RowLimit:         10000,
			PartialThreshold: 10001,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LoadEnv reads a .env file from the working directory if there is one
func LoadEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// GetConfigDir returns the path to the config directory (~/.gareport)
func GetConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(configDir, 0700)
}

// LoadConfig reads the global configuration, fills unset values with
// defaults and applies environment overrides
func LoadConfig() (*AppConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		var loaded AppConfig
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		config = mergeDefaults(&loaded)
	}

	applyEnv(config)
	return config, nil
}

// SaveConfig writes the global configuration to disk
func SaveConfig(config *AppConfig) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	config.UpdatedAt = time.Now()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now()
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// user read/write only: the file names a credentials path
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Set updates one dotted key ("report.partial_threshold") and saves
func Set(key, value string) error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Set(key, value); err != nil {
		return err
	}
	return SaveConfig(config)
}

// Set updates one dotted key in memory
func (c *AppConfig) Set(key, value string) error {
	var err error
	switch key {
	case "credentials_file":
		c.CredentialsFile = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		if value != "console" && value != "json" {
			return fmt.Errorf("log.format must be console or json")
		}
		c.Log.Format = value
	case "rate_limit.requests_per_second":
		c.RateLimit.RequestsPerSecond, err = strconv.ParseFloat(value, 64)
	case "rate_limit.burst":
		c.RateLimit.Burst, err = strconv.Atoi(value)
	case "rate_limit.max_retries":
		c.RateLimit.MaxRetries, err = strconv.Atoi(value)
	case "cache.disabled":
		c.Cache.Disabled, err = strconv.ParseBool(value)
	case "cache.metadata_ttl_hours":
		c.Cache.MetadataTTLHours, err = strconv.Atoi(value)
	case "cache.report_ttl_hours":
		c.Cache.ReportTTLHours, err = strconv.Atoi(value)
	case "cache.catalog_entries":
		c.Cache.CatalogEntries, err = strconv.Atoi(value)
	case "report.row_limit":
		c.Report.RowLimit, err = strconv.Atoi(value)
	case "report.partial_threshold":
		c.Report.PartialThreshold, err = strconv.ParseInt(value, 10, 64)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// SetCredentialsFile stores the path of the credentials JSON
func SetCredentialsFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("credentials file not readable: %w", err)
	}
	return Set("credentials_file", abs)
}

// GetCredentialsFile returns the configured credentials JSON path
func GetCredentialsFile() (string, error) {
	config, err := LoadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return config.CredentialsFile, nil
}

// SetActivePreset sets the active preset name
func SetActivePreset(presetName string) error {
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	config.ActivePreset = presetName

	if err := SaveConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GetActivePreset returns the currently active preset name
func GetActivePreset() (string, error) {
	config, err := LoadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return config.ActivePreset, nil
}

func mergeDefaults(c *AppConfig) *AppConfig {
	d := DefaultConfig()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = d.RateLimit.RequestsPerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = d.RateLimit.Burst
	}
	if c.RateLimit.MaxRetries < 0 {
		c.RateLimit.MaxRetries = d.RateLimit.MaxRetries
	}
	if c.Cache.MetadataTTLHours <= 0 {
		c.Cache.MetadataTTLHours = d.Cache.MetadataTTLHours
	}
	if c.Cache.ReportTTLHours <= 0 {
		c.Cache.ReportTTLHours = d.Cache.ReportTTLHours
	}
	if c.Cache.CatalogEntries <= 0 {
		c.Cache.CatalogEntries = d.Cache.CatalogEntries
	}
	if c.Report.RowLimit <= 0 {
		c.Report.RowLimit = d.Report.RowLimit
	}
	if c.Report.PartialThreshold <= 0 {
		c.Report.PartialThreshold = d.Report.PartialThreshold
	}
	return c
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv(CredentialsEnv); v != "" {
		c.CredentialsFile = v
	}
	if v := os.Getenv(LogLevelEnv); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(LogFormatEnv); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}
