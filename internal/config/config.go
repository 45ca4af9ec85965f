package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ClientSDK  = "sdk"
	ClientREST = "rest"

	DefaultExportDomain = "export"
	DefaultTargetDomain = "data"
	DefaultCluster      = "LabOvirt41"
	DefaultLogFile      = "ovirt-import.log"
	DefaultLogLevel     = "debug"
	DefaultTimeout      = 5 * time.Minute
)

var (
	ErrMissingURL      = errors.New("engine url is required")
	ErrMissingUsername = errors.New("username is required")
)

type Config struct {
	Engine *EngineConfig `yaml:"engine"`
	Import *ImportConfig `yaml:"import"`
	Log    *LogConfig    `yaml:"log"`
}

type EngineConfig struct {
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"-"`
	CAFile   string        `yaml:"ca_file"`
	Insecure bool          `yaml:"insecure"`
	Client   string        `yaml:"client"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ImportConfig struct {
	ExportDomain      string `yaml:"export_domain"`
	TargetDomain      string `yaml:"target_domain"`
	Cluster           string `yaml:"cluster"`
	Clone             bool   `yaml:"clone"`
	CollapseSnapshots bool   `yaml:"collapse_snapshots"`
	Exclusive         bool   `yaml:"exclusive"`
	DryRun            bool   `yaml:"dry_run"`
	ContinueOnError   bool   `yaml:"continue_on_error"`
	Retries           int    `yaml:"retries"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func NewConfig() *Config {
	return &Config{
		Engine: &EngineConfig{
			Client:  ClientSDK,
			Timeout: DefaultTimeout,
		},
		Import: &ImportConfig{
			ExportDomain: DefaultExportDomain,
			TargetDomain: DefaultTargetDomain,
			Cluster:      DefaultCluster,
		},
		Log: &LogConfig{
			File:       DefaultLogFile,
			Level:      DefaultLogLevel,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadFile reads a YAML file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// null sections fall back to their defaults
	defaults := NewConfig()
	if cfg.Engine == nil {
		cfg.Engine = defaults.Engine
	}
	if cfg.Import == nil {
		cfg.Import = defaults.Import
	}
	if cfg.Log == nil {
		cfg.Log = defaults.Log
	}

	return cfg, nil
}

// ValidateRequired reports a missing url or username.
func (c *Config) ValidateRequired() error {
	if c.Engine.URL == "" {
		return ErrMissingURL
	}
	if c.Engine.Username == "" {
		return ErrMissingUsername
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.ValidateRequired(); err != nil {
		return err
	}

	switch c.Engine.Client {
	case ClientSDK, ClientREST:
	default:
		return fmt.Errorf("unknown client %q, expected %s or %s", c.Engine.Client, ClientSDK, ClientREST)
	}

	if c.Engine.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Engine.Timeout)
	}

	if c.Import.Retries < 0 {
		return fmt.Errorf("retries must not be negative: %d", c.Import.Retries)
	}

	if c.Import.ExportDomain == "" || c.Import.TargetDomain == "" || c.Import.Cluster == "" {
		return errors.New("export domain, target domain and cluster names must not be empty")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	return nil
}
