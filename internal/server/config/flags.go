package config

import "github.com/spf13/pflag"

// BindFlags registers overrides for the non-secret settings on fs. The
// current values of cfg (usually loaded from the environment) become the
// flag defaults, so an unset flag leaves the setting untouched.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis connection string")
	fs.StringVar(&cfg.AppURL, "app-url", cfg.AppURL, "public base URL for email links")

	fs.DurationVar(&cfg.AccessTokenTTL, "access-ttl", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenTTL, "refresh-ttl", cfg.RefreshTokenTTL, "refresh token lifetime")
	fs.DurationVar(&cfg.ResetTokenTTL, "reset-ttl", cfg.ResetTokenTTL, "password reset token lifetime")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", cfg.BcryptCost, "bcrypt cost factor")

	fs.StringVar(&cfg.SMTPHost, "smtp-host", cfg.SMTPHost, "SMTP server host")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP server port")
	fs.StringVar(&cfg.SMTPUser, "smtp-user", cfg.SMTPUser, "SMTP username")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", cfg.SMTPFrom, "sender address for outgoing mail")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text)")

	fs.DurationVar(&cfg.SessionSweepInterval, "sweep-interval", cfg.SessionSweepInterval, "expired session sweep interval")
	fs.DurationVar(&cfg.MailPollTimeout, "mail-poll-timeout", cfg.MailPollTimeout, "outbox blocking pop timeout")
}
