package main

import (
	"github.com/caarlos0/env/v10"
	goerrors "github.com/goliatone/go-errors"
)

// Config is the server's environment driven configuration.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	DSN       string `env:"DATABASE_DSN" envDefault:"file:miniapp.db?cache=shared&mode=rwc"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// RedirectTarget is where unauthenticated browser traffic lands.
	RedirectTarget string `env:"GATE_REDIRECT_TARGET" envDefault:"/"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse environment")
	}
	if cfg.JWTSecret == "" {
		return nil, goerrors.New("JWT_SECRET is required", goerrors.CategoryBadInput)
	}
	return cfg, nil
}
