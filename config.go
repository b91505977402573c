package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server settings, parsed from flags, the environment and .env.
// The `mapstructure` tags map fields to viper keys.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	PublicURL      string        `mapstructure:"public-url"`
	MaxRedirects   int           `mapstructure:"max-redirects"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxBodySize    int64         `mapstructure:"max-body-size"`
	LogLevel       string        `mapstructure:"log-level"`
	LogJSON        bool          `mapstructure:"log-json"`
	Metrics        bool          `mapstructure:"metrics"`
}

// addFlags defines every configuration flag on fs
func addFlags(fs *pflag.FlagSet) {
	fs.String("host", "localhost", "Interface to listen on")
	fs.String("port", "3000", "Port to listen on")
	fs.String("public-url", "", "Public base URL of this server (default http://host:port)")
	fs.Int("max-redirects", defaultMaxRedirects, "Maximum number of redirects to follow for a resource")
	fs.Duration("request-timeout", 30*time.Second, "Time limit for resolving and reading an upstream resource")
	fs.Int64("max-body-size", defaultMaxBodySize, "Maximum upstream body size in bytes")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Bool("log-json", false, "Output logs in JSON")
	fs.Bool("metrics", false, "Expose Prometheus metrics on /metrics")
}

// loadConfig reads the configuration from v. Flags bound to v take precedence
// over the environment, which takes precedence over defaults.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.MaxRedirects <= 0 {
		errs = append(errs, fmt.Errorf("max-redirects must be positive, got %d", c.MaxRedirects))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request-timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("max-body-size must be positive, got %d", c.MaxBodySize))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) addr() string {
	return c.Host + ":" + c.Port
}
