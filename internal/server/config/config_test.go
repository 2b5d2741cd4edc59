package config

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatauth/internal/common"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/chat?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "no-reply@example.com")
	t.Setenv("APP_URL", "https://chat.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)

	expected := &Config{
		DatabaseURL:          "postgres://u:p@localhost:5432/chat?sslmode=disable",
		RedisURL:             "redis://localhost:6379/0",
		JWTAccessSecret:      "access-secret",
		JWTRefreshSecret:     "refresh-secret",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		BcryptCost:           12,
		SMTPHost:             "smtp.example.com",
		SMTPPort:             587,
		SMTPFrom:             "no-reply@example.com",
		AppURL:               "https://chat.example.com",
		RateLimitWindow:      15 * time.Minute,
		RateLimitMax:         100,
		LogLevel:             "info",
		LogFormat:            "json",
		SessionSweepInterval: 10 * time.Minute,
		MailPollTimeout:      5 * time.Second,
		MailOutboxKey:        "chatauth:mail:outbox",
	}
	assert.Empty(t, cmp.Diff(expected, c))
	assert.NoError(t, c.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("LOG_FORMAT", "text")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 2525, c.SMTPPort)
	assert.Equal(t, "text", c.LogFormat)
}

func TestLoad_Malformed(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_ACCESS_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfig))
}

func TestValidate_MissingRequired(t *testing.T) {
	c := &Config{
		AccessTokenTTL:       time.Minute,
		RefreshTokenTTL:      time.Hour,
		ResetTokenTTL:        time.Hour,
		BcryptCost:           12,
		SMTPPort:             587,
		RateLimitWindow:      time.Minute,
		RateLimitMax:         10,
		SessionSweepInterval: time.Minute,
		MailPollTimeout:      time.Second,
		MailOutboxKey:        "k",
	}

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfig)

	var ce *common.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{
		"DATABASE_URL is required",
		"REDIS_URL is required",
		"JWT_ACCESS_SECRET is required",
		"JWT_REFRESH_SECRET is required",
		"SMTP_HOST is required",
		"SMTP_FROM is required",
		"APP_URL is required",
	}, ce.Fields)
}

func TestValidate_Constraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"same secrets", func(c *Config) { c.JWTRefreshSecret = c.JWTAccessSecret }, "must differ"},
		{"zero access ttl", func(c *Config) { c.AccessTokenTTL = 0 }, "JWT_ACCESS_TTL must be positive"},
		{"negative refresh ttl", func(c *Config) { c.RefreshTokenTTL = -time.Second }, "JWT_REFRESH_TTL must be positive"},
		{"cost too low", func(c *Config) { c.BcryptCost = 2 }, "BCRYPT_COST"},
		{"cost too high", func(c *Config) { c.BcryptCost = 40 }, "BCRYPT_COST"},
		{"relative app url", func(c *Config) { c.AppURL = "/chat" }, "APP_URL must be an absolute URL"},
		{"rate limit", func(c *Config) { c.RateLimitMax = 0 }, "RATE_LIMIT_MAX"},
		{"smtp port", func(c *Config) { c.SMTPPort = 70000 }, "SMTP_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			c, err := Load()
			require.NoError(t, err)

			tt.mutate(c)
			err = c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBindFlags_OverridesEnvironment(t *testing.T) {
	setRequired(t)
	c, err := Load()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, c)

	require.NoError(t, fs.Parse([]string{"--database-url", "postgres://other", "--access-ttl", "1m", "--log-level", "debug"}))

	assert.Equal(t, "postgres://other", c.DatabaseURL)
	assert.Equal(t, time.Minute, c.AccessTokenTTL)
	assert.Equal(t, "debug", c.LogLevel)
	// untouched flags keep the environment value
	assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
}

func TestBindFlags_NoSecretFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &Config{})

	assert.Nil(t, fs.Lookup("jwt-access-secret"))
	assert.Nil(t, fs.Lookup("smtp-password"))
	assert.NotNil(t, fs.Lookup("smtp-host"))
}
