// Package config handles configuration for the server component: environment
// variables with defaults, command-line flag overrides and fail-fast
// validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/chatauth/internal/common"
)

// Config holds runtime settings for the chatauth server.
//
// Secrets (JWT keys, SMTP password) are read from the environment only and
// have no flag counterpart.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	ResetTokenTTL    time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// AppURL is the public base URL used to build links in emails.
	AppURL string `env:"APP_URL"`

	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
	MailPollTimeout      time.Duration `env:"MAIL_POLL_TIMEOUT" envDefault:"5s"`
	MailOutboxKey        string        `env:"MAIL_OUTBOX_KEY" envDefault:"chatauth:mail:outbox"`
}

// Load reads the configuration from the process environment. It does not
// validate; call Validate once flag overrides have been applied.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &common.ConfigError{Fields: []string{err.Error()}}
	}
	return cfg, nil
}

// Validate checks every required and constrained setting and reports all
// problems at once as a *common.ConfigError.
func (c *Config) Validate() error {
	var fields []string

	required := []struct {
		key, val string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"JWT_ACCESS_SECRET", c.JWTAccessSecret},
		{"JWT_REFRESH_SECRET", c.JWTRefreshSecret},
		{"SMTP_HOST", c.SMTPHost},
		{"SMTP_FROM", c.SMTPFrom},
		{"APP_URL", c.AppURL},
	}
	for _, r := range required {
		if r.val == "" {
			fields = append(fields, r.key+" is required")
		}
	}

	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		fields = append(fields, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{"JWT_ACCESS_TTL", c.AccessTokenTTL},
		{"JWT_REFRESH_TTL", c.RefreshTokenTTL},
		{"RESET_TOKEN_TTL", c.ResetTokenTTL},
		{"RATE_LIMIT_WINDOW", c.RateLimitWindow},
		{"SESSION_SWEEP_INTERVAL", c.SessionSweepInterval},
		{"MAIL_POLL_TIMEOUT", c.MailPollTimeout},
	}
	for _, d := range durations {
		if d.val <= 0 {
			fields = append(fields, d.key+" must be positive")
		}
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		fields = append(fields, fmt.Sprintf("BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		fields = append(fields, "SMTP_PORT is out of range")
	}
	if c.RateLimitMax <= 0 {
		fields = append(fields, "RATE_LIMIT_MAX must be positive")
	}
	if c.MailOutboxKey == "" {
		fields = append(fields, "MAIL_OUTBOX_KEY is required")
	}

	if c.AppURL != "" {
		u, err := url.Parse(c.AppURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			fields = append(fields, "APP_URL must be an absolute URL")
		}
	}

	if len(fields) > 0 {
		return &common.ConfigError{Fields: fields}
	}
	return nil
}
