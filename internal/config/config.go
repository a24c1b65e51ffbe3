package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"taskboard/internal/logging"
)

// EnvConfigPath overrides DefaultConfigPath for the task API.
const EnvConfigPath = "TASKAPI_CONFIG"

const DefaultConfigPath = "config/config.yaml"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ReportConfig struct {
	// FontPath is a TTF used for the summary PDF, e.g. "assets/fonts/DejaVuSans.ttf".
	// Empty uses the built-in Helvetica.
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"url"`
	} `yaml:"database"`
	Logging logging.Config `yaml:"logging"`
	Report  ReportConfig   `yaml:"report"`
	Metrics struct {
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// LoadConfig reads the task API config from $TASKAPI_CONFIG or
// config/config.yaml. A missing default file is not an error: the in-memory
// store and defaults are used.
func LoadConfig() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a yaml config and fills defaults.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Database.Driver == "" {
		if c.Database.DSN != "" {
			c.Database.Driver = DriverPostgres
		} else {
			c.Database.Driver = DriverMemory
		}
	}
	def := logging.DefaultConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = def.Output
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "taskapi"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
