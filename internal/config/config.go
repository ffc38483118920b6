// Package config loads sitesync settings from a config file, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/blob"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SITESYNC"
	configFileName = "config"

	BlobBackendMemory = "memory"
	BlobBackendS3     = "s3"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigDir  = filepath.Join(home, ".sitesync")
	DefaultConfigPath = filepath.Join(DefaultConfigDir, configFileName+".json")
	DefaultLogFile    = filepath.Join(DefaultConfigDir, "logs", "sitesync.log")
)

var (
	ErrNoLedgerURL = errors.New("config: ledger_url is required")
)

// defaults are registered for every key so that env vars resolve through AutomaticEnv.
var defaults = map[string]any{
	"domain":             "sitesync.page",
	"ledger_url":         "",
	"retention":          720 * time.Hour,
	"upload_concurrency": 8,
	"max_batch_ops":      50,
	"budget_floor":       uint64(5_000_000),
	"budget_base":        uint64(1_000_000),
	"budget_per_item":    uint64(200_000),
	"blob_backend":       BlobBackendMemory,
	"log_file":           DefaultLogFile,
	"s3.bucket":          "",
	"s3.region":          "",
	"s3.access_key":      "",
	"s3.secret_key":      "",
	"s3.endpoint":        "",
	"s3.prefix":          "",
}

type Config struct {
	Path              string        `json:"-" mapstructure:"-"`
	Domain            string        `json:"domain" mapstructure:"domain"`
	LedgerURL         string        `json:"ledger_url" mapstructure:"ledger_url"`
	Retention         time.Duration `json:"retention" mapstructure:"retention"`
	UploadConcurrency int           `json:"upload_concurrency" mapstructure:"upload_concurrency"`
	MaxBatchOps       int           `json:"max_batch_ops" mapstructure:"max_batch_ops"`
	BudgetFloor       uint64        `json:"budget_floor" mapstructure:"budget_floor"`
	BudgetBase        uint64        `json:"budget_base" mapstructure:"budget_base"`
	BudgetPerItem     uint64        `json:"budget_per_item" mapstructure:"budget_per_item"`
	BlobBackend       string        `json:"blob_backend" mapstructure:"blob_backend"`
	LogFile           string        `json:"log_file" mapstructure:"log_file"`
	S3                blob.S3Config `json:"s3" mapstructure:"s3"`
}

// New returns a viper instance with every default registered.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads .env, the config file and SITESYNC_* variables into a validated Config.
// configFile may be empty to search the default locations.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(DefaultConfigDir)
		v.AddConfigPath(filepath.Join(home, ".config", "sitesync"))
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads path if it exists. Variables already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.Trim(strings.TrimSpace(c.Domain), ".") == "" {
		return fmt.Errorf("config: domain is required")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("config: retention must be positive, got %s", c.Retention)
	}
	if c.UploadConcurrency <= 0 {
		return fmt.Errorf("config: upload_concurrency must be positive, got %d", c.UploadConcurrency)
	}
	if err := c.BatchConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.BlobBackend {
	case BlobBackendMemory:
	case BlobBackendS3:
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("config: s3 backend needs s3.bucket and s3.region: %w", err)
		}
	default:
		return fmt.Errorf("config: unknown blob_backend %q", c.BlobBackend)
	}
	return nil
}

// RequireLedger fails unless a ledger URL is configured.
func (c *Config) RequireLedger() error {
	if strings.TrimSpace(c.LedgerURL) == "" {
		return ErrNoLedgerURL
	}
	return nil
}

func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		MaxOps: c.MaxBatchOps,
		Budget: batch.BudgetConfig{
			Floor:   c.BudgetFloor,
			Base:    c.BudgetBase,
			PerItem: c.BudgetPerItem,
		},
	}
}
