package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultURL            = "ws://localhost:9090"
	DefaultLogLevel       = "info"
	DefaultConnectTimeout = 10 * time.Second
	DefaultListen         = "127.0.0.1:9090"
)

type Config struct {
	// URL of the rosbridge server the CLI connects to
	URL string `toml:"url"`

	// LogLevel is one of debug, info, warn or error
	LogLevel string `toml:"log_level"`

	// ConnectTimeout bounds dialing the server
	ConnectTimeout time.Duration `toml:"connect_timeout"`

	// Listen is the address the fake bridge binds to
	Listen string `toml:"listen"`
}

// environment holds the values read from the process environment. Unset
// variables leave their field zero so they do not override the file.
type environment struct {
	URL            string        `env:"ROSBRIDGE_URL"`
	LogLevel       string        `env:"ROSBRIDGE_LOG_LEVEL"`
	ConnectTimeout time.Duration `env:"ROSBRIDGE_CONNECT_TIMEOUT"`
	Listen         string        `env:"ROSBRIDGE_LISTEN"`
}

// LoadConfig builds a Config from the defaults, then the TOML file at path
// (skipped when path is empty), then .env.local, then environment variables.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	config := Config{
		URL:            DefaultURL,
		LogLevel:       DefaultLogLevel,
		ConnectTimeout: DefaultConnectTimeout,
		Listen:         DefaultListen,
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("env: read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(".env.local"); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("env: load .env.local: %w", err)
		}
	}

	var vars environment
	if err := envconfig.Process(ctx, &vars); err != nil {
		return nil, err
	}
	config.merge(vars)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) merge(vars environment) {
	if vars.URL != "" {
		c.URL = vars.URL
	}
	if vars.LogLevel != "" {
		c.LogLevel = vars.LogLevel
	}
	if vars.ConnectTimeout != 0 {
		c.ConnectTimeout = vars.ConnectTimeout
	}
	if vars.Listen != "" {
		c.Listen = vars.Listen
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("env: url must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("env: connect_timeout must be positive, got %s", c.ConnectTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
