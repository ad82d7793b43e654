package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

type Config struct {
	Environment        string `env:"ENVIRONMENT" envDefault:"sandbox"`
	GatewayAccessToken string `env:"GATEWAY_ACCESS_TOKEN,required"`
	GatewayPublicKey   string `env:"GATEWAY_PUBLIC_KEY,required"`
	GatewaySandboxURL  string `env:"GATEWAY_SANDBOX_URL" envDefault:"https://sandbox.gateway.pagou.dev"`
	GatewayProdURL     string `env:"GATEWAY_PROD_URL" envDefault:"https://api.gateway.pagou.dev"`
	WebhookSecret      string `env:"WEBHOOK_SECRET,required"`

	PixExpirySeconds int `env:"PIX_EXPIRY_SECONDS" envDefault:"3600"`
	PixDiscountPct   int `env:"PIX_DISCOUNT_PCT" envDefault:"5"`
	BoletoExpiryDays int `env:"BOLETO_EXPIRY_DAYS" envDefault:"3"`
	MaxInstallments  int `env:"MAX_INSTALLMENTS" envDefault:"12"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != EnvSandbox && c.Environment != EnvProduction {
		return fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Environment)
	}
	if c.PixDiscountPct < 0 || c.PixDiscountPct > 100 {
		return fmt.Errorf("PIX_DISCOUNT_PCT out of range: %d", c.PixDiscountPct)
	}
	if c.MaxInstallments < 1 || c.MaxInstallments > 12 {
		return fmt.Errorf("MAX_INSTALLMENTS must be within [1, 12], got %d", c.MaxInstallments)
	}
	return nil
}

// GatewayBaseURL resolves the provider endpoint for the configured
// environment. Credentials are never hard-coded; sandbox and production use
// the same required env vars.
func (c *Config) GatewayBaseURL() string {
	if c.Environment == EnvProduction {
		return c.GatewayProdURL
	}
	return c.GatewaySandboxURL
}
