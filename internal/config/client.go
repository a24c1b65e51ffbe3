package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"taskboard/internal/apiclient"
	"taskboard/internal/logging"
	"taskboard/internal/querycache"
	"taskboard/internal/sorting"
)

// ClientEnvPrefix prefixes every environment override, e.g. TASKBOARD_API_URL.
const ClientEnvPrefix = "TASKBOARD"

// ClientConfig configures the taskboard CLI.
type ClientConfig struct {
	APIURL  string                  `mapstructure:"api_url"`
	Timeout time.Duration           `mapstructure:"timeout"`
	Cache   querycache.Config       `mapstructure:",squash"`
	Breaker apiclient.BreakerConfig `mapstructure:"breaker"`
	Sort    string                  `mapstructure:"sort"`
	Logging logging.Config          `mapstructure:"logging"`
}

// SortField parses Sort.
func (c *ClientConfig) SortField() (sorting.Field, error) {
	return sorting.ParseField(c.Sort)
}

// DefaultClientConfigPath returns ~/.taskboard.yaml.
func DefaultClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taskboard.yaml")
}

func setClientDefaults(v *viper.Viper) {
	cache := querycache.DefaultConfig()
	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("stale_time", cache.StaleTime)
	v.SetDefault("retries", cache.Retries)
	v.SetDefault("retry_backoff", cache.RetryBackoff)
	v.SetDefault("fetch_timeout", cache.FetchTimeout)
	v.SetDefault("max_entries", cache.MaxEntries)
	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.min_requests", 3)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
	v.SetDefault("sort", string(sorting.DefaultField))
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
}

// LoadClient reads the client config into v. path may be empty, in which case
// ~/.taskboard.yaml is used when it exists. Flags bound to v beforehand take
// precedence over the environment, which takes precedence over the file.
func LoadClient(v *viper.Viper, path string) (*ClientConfig, error) {
	setClientDefaults(v)
	v.SetEnvPrefix(ClientEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultClientConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode client config: %w", err)
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api_url is required")
	}
	if _, err := cfg.SortField(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
