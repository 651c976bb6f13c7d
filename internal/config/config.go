// Package config loads mdlink settings from the environment and an optional .env file.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the settings shared by the mdlink commands. Flags override it.
type Config struct {
	// Client
	Host        string        `env:"MDLINK_HOST" default:"127.0.0.1"`
	Port        int           `env:"MDLINK_PORT" default:"8052"`
	DialTimeout time.Duration `env:"MDLINK_DIAL_TIMEOUT" default:"10s"`
	Tick        time.Duration `env:"MDLINK_TICK" default:"16ms"`
	Displays    []uint8       `env:"MDLINK_DISPLAYS"`

	// Storage
	TempDir       string `env:"MDLINK_TEMP_DIR"`
	QueueLimit    int    `env:"MDLINK_QUEUE_LIMIT" default:"0"`
	MaxObjectSize int    `env:"MDLINK_MAX_OBJECT_SIZE" default:"0"`

	// Server
	Listen string `env:"MDLINK_LISTEN" default:":8052"`

	LogLevel string `env:"MDLINK_LOG_LEVEL" default:"info"`
}

// Load reads envFile, if it exists, into the process environment and builds
// a Config from it. Variables already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	config := &Config{}

	if err := loadEnvString(&config.Host, "MDLINK_HOST", "127.0.0.1"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.Port, "MDLINK_PORT", 8052); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.DialTimeout, "MDLINK_DIAL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.Tick, "MDLINK_TICK", 16*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvDisplayIDs(&config.Displays, "MDLINK_DISPLAYS"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.TempDir, "MDLINK_TEMP_DIR", ""); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.QueueLimit, "MDLINK_QUEUE_LIMIT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxObjectSize, "MDLINK_MAX_OBJECT_SIZE", 0); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.Listen, "MDLINK_LISTEN", ":8052"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogLevel, "MDLINK_LOG_LEVEL", "info"); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Tick <= 0 {
		return errors.Errorf("tick must be positive, got %s", c.Tick)
	}
	if c.QueueLimit < 0 {
		return errors.Errorf("queue limit must not be negative, got %d", c.QueueLimit)
	}
	if c.MaxObjectSize < 0 {
		return errors.Errorf("max object size must not be negative, got %d", c.MaxObjectSize)
	}
	return nil
}

func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return errors.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// loadEnvDisplayIDs parses a comma separated list of display ids.
func loadEnvDisplayIDs(target *[]uint8, key string) error {
	value := os.Getenv(key)
	if value == "" {
		*target = nil
		return nil
	}

	ids, err := ParseDisplayIDs(value)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", key)
	}
	*target = ids
	return nil
}

// ParseDisplayIDs parses "1,2, 3" into display ids.
func ParseDisplayIDs(value string) ([]uint8, error) {
	var ids []uint8
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, errors.Errorf("display id %q: must be 0-255", part)
		}
		ids = append(ids, uint8(id))
	}
	return ids, nil
}
