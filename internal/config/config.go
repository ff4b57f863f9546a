// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/keshon/cmdmux/pkg/cmd"
)

// Config is the process configuration shared by every binary.
type Config struct {
	Env   cmd.Env `env:"CMDMUX_ENV" envDefault:"prod"`
	Debug bool    `env:"DEBUG" envDefault:"false"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	StoragePath     string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	PermissionsFile string `env:"PERMISSIONS_FILE" envDefault:"permissions.yaml"`

	CommandPrefix string        `env:"COMMAND_PREFIX" envDefault:"!"`
	AsyncWorkers  int           `env:"ASYNC_WORKERS" envDefault:"4"`
	Tick          time.Duration `env:"TICK" envDefault:"50ms"`
	FloodRate     float64       `env:"FLOOD_RATE" envDefault:"2"`
	FloodBurst    int           `env:"FLOOD_BURST" envDefault:"5"`

	DiscordToken string `env:"DISCORD_TOKEN"`
}

// LoadDotEnv loads an optional .env file into the process environment. A
// missing file is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// New parses the process environment.
func New() (*Config, error) {
	return parse(env.Options{})
}

// FromMap parses cfg from vars only, ignoring the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges the env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.AsyncWorkers < 1 {
		errs = append(errs, fmt.Errorf("ASYNC_WORKERS must be at least 1, got %d", c.AsyncWorkers))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("TICK must be positive, got %s", c.Tick))
	}
	if c.FloodBurst < 1 {
		errs = append(errs, fmt.Errorf("FLOOD_BURST must be at least 1, got %d", c.FloodBurst))
	}
	if c.StoragePath == "" {
		errs = append(errs, errors.New("STORAGE_PATH is empty"))
	}
	return errors.Join(errs...)
}

// RequireDiscord reports a missing bot token.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	if c.CommandPrefix == "" {
		return errors.New("COMMAND_PREFIX is empty")
	}
	return nil
}
