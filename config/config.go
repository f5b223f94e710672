package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the process configuration, read from RELAY_* environment variables.
type Config struct {
	Mode          string `env:"RELAY_ENV" envDefault:"production"` // production | development
	LogLevel      string `env:"RELAY_LOG_LEVEL" envDefault:"info"`
	LogMode       string `env:"RELAY_LOG_MODE"` // TEXT | JSON; empty picks by terminal
	LogFile       string `env:"RELAY_LOG"`
	LogMaxSize    int    `env:"RELAY_LOG_MAX_SIZE" envDefault:"100"` // megabytes
	LogMaxBackups int    `env:"RELAY_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"RELAY_LOG_MAX_AGE" envDefault:"28"` // days
	MaxWorkers    int    `env:"RELAY_MAX_WORKERS" envDefault:"64"`
	IDGenerator   string `env:"RELAY_ID" envDefault:"nanoid"` // nanoid | uuid
}

var (
	mu   sync.RWMutex
	conf = Config{Mode: "production", LogLevel: "info", MaxWorkers: 64, IDGenerator: "nanoid"}
)

// Load reads envfiles (missing files are skipped) into the environment, parses the
// environment into a Config and makes it the current one.
// Variables already set in the environment win over the files.
func Load(envfiles ...string) (Config, error) {
	for _, file := range envfiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	Set(cfg)
	return cfg, nil
}

func (cfg Config) validate() error {
	switch strings.ToLower(cfg.Mode) {
	case "production", "development":
	default:
		return fmt.Errorf("config: RELAY_ENV must be production or development, got %q", cfg.Mode)
	}
	switch strings.ToLower(cfg.IDGenerator) {
	case "nanoid", "uuid":
	default:
		return fmt.Errorf("config: RELAY_ID must be nanoid or uuid, got %q", cfg.IDGenerator)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("config: RELAY_MAX_WORKERS must be positive, got %d", cfg.MaxWorkers)
	}
	return nil
}

// Set replaces the current configuration.
func Set(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	conf = cfg
}

// Get returns the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return conf
}

// IsDevelopment reports whether the current configuration runs in development mode.
func IsDevelopment() bool {
	return strings.EqualFold(Get().Mode, "development")
}
