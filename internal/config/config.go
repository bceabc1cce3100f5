// Package config loads analysis settings with Viper. Sources, lowest
// precedence first: defaults, an optional YAML config file, a .env file,
// VLA_* environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abyrne55/verifier-log-analysis/internal/hcp"
	"github.com/abyrne55/verifier-log-analysis/internal/logging"
	"github.com/abyrne55/verifier-log-analysis/internal/ocm"
	"github.com/abyrne55/verifier-log-analysis/internal/pipeline"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/report"
)

// EnvPrefix prefixes every environment variable, e.g. VLA_OCM_TOKEN.
const EnvPrefix = "VLA"

// Config holds every setting a command may need. Keys match flag names.
type Config struct {
	Since string `mapstructure:"since"`
	Until string `mapstructure:"until"`
	// HCP is the topology filter: all, only or exclude. The --hcp and
	// --no-hcp switches are applied on top with SetHCP.
	HCP string `mapstructure:"hcp-filter"`

	OCMURL       string        `mapstructure:"ocm-url"`
	OCMToken     string        `mapstructure:"ocm-token"`
	OCMTokenFile string        `mapstructure:"ocm-token-file"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Parallel     int           `mapstructure:"parallel"`
	FetchLogs    bool          `mapstructure:"fetch-logs"`

	Format          string `mapstructure:"format"`
	ExportDB        string `mapstructure:"export-db"`
	MetricsTextfile string `mapstructure:"metrics-textfile"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("since", "")
	v.SetDefault("until", "")
	v.SetDefault("hcp-filter", "all")
	v.SetDefault("ocm-url", ocm.DefaultBaseURL)
	v.SetDefault("ocm-token", "")
	v.SetDefault("ocm-token-file", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("parallel", 8)
	v.SetDefault("fetch-logs", false)
	v.SetDefault("format", string(report.Text))
	v.SetDefault("export-db", "")
	v.SetDefault("metrics-textfile", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// Options locate the optional file sources.
type Options struct {
	ConfigFile string // YAML; empty means none
	DotEnv     string // empty means ".env"; a missing file is ignored
	Flags      *pflag.FlagSet
}

// Load merges every source into a validated Config.
func Load(opts Options) (*Config, error) {
	if err := LoadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if opts.Flags != nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv exports the variables in path without overriding ones that are
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Validate checks every enumerated or bounded setting.
func (c *Config) Validate() error {
	if c.Parallel < 1 {
		return fmt.Errorf("config: parallel must be at least 1, got %d", c.Parallel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := hcp.ParseFilter(c.HCP); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// SetHCP applies the --hcp / --no-hcp switches over the configured filter.
func (c *Config) SetHCP(only, exclude bool) error {
	switch {
	case only && exclude:
		return errors.New("config: --hcp and --no-hcp are mutually exclusive")
	case only:
		c.HCP = hcp.Only.String()
	case exclude:
		c.HCP = hcp.Exclude.String()
	}
	return nil
}

// Window parses the inclusive bounds. Unset bounds are zero, which the
// pipeline reads as the widest window.
func (c *Config) Window() (since, until time.Time, err error) {
	if c.Since != "" {
		if since, err = record.ParseTime(c.Since); err != nil {
			return since, until, fmt.Errorf("config: since: %w", err)
		}
	}
	if c.Until != "" {
		if until, err = record.ParseTime(c.Until); err != nil {
			return since, until, fmt.Errorf("config: until: %w", err)
		}
	}
	return since, until, nil
}

// Pipeline returns the analysis settings.
func (c *Config) Pipeline() (pipeline.Config, error) {
	since, until, err := c.Window()
	if err != nil {
		return pipeline.Config{}, err
	}
	f, err := hcp.ParseFilter(c.HCP)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{Since: since, Until: until, HCP: f, Parallel: c.Parallel}, nil
}

// Token returns the OCM bearer token from the token setting, falling back
// to the first line of the token file. Empty when neither is set.
func (c *Config) Token() (string, error) {
	if c.OCMToken != "" {
		return c.OCMToken, nil
	}
	if c.OCMTokenFile == "" {
		return "", nil
	}
	tok, err := ocm.ReadToken(c.OCMTokenFile)
	if err != nil {
		return "", fmt.Errorf("config: read token file: %w", err)
	}
	return tok, nil
}
