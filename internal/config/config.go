package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`

	DatabaseHost     string `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort     string `envconfig:"DB_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DB_USER" default:"postgres"`
	DatabasePassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DatabaseName     string `envconfig:"DB_NAME" default:"uniteams"`
	DatabaseSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	// BaseURL is the public prefix of the confirm/reject links sent to
	// invited students.
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	TokenSecret string `envconfig:"TOKEN_AUTH_SECRET" required:"true"`
}

// Load reads the configuration from the environment, with .env as a
// fallback for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}
