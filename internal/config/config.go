package config

import (
	"fmt"
	"strings"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8001"`
	AccessToken string `env:"ACCESS_TOKEN,required"`

	// WEBHOOK_SECRET is accepted either as a hex string or as plain UTF-8;
	// the verifier tries both interpretations.
	WebhookSecret string `env:"WEBHOOK_SECRET,required"`

	BackendBase         string `env:"BACKEND_BASE" envDefault:"http://167.114.145.34:8000"`
	BackendWebhookToken string `env:"BACKEND_WEBHOOK_TOKEN"`
	PublicBase          string `env:"PUBLIC_BASE" envDefault:"https://pipops.cl"`
	MercadoPagoBaseURL  string `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	HTTPClientTimeoutS int `env:"HTTP_CLIENT_TIMEOUT_S" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	cfg.BackendBase = strings.TrimRight(cfg.BackendBase, "/")
	cfg.PublicBase = strings.TrimRight(cfg.PublicBase, "/")
	cfg.MercadoPagoBaseURL = strings.TrimRight(cfg.MercadoPagoBaseURL, "/")
	return &cfg, nil
}
