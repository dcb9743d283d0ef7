package mfa

import "time"

// Config holds the coordinator's tunables, populated from the
// environment.
type Config struct {
	CodeLength          int           `env:"MFA_CODE_LENGTH" envDefault:"6"`
	BaseCooldown        time.Duration `env:"MFA_RESEND_COOLDOWN" envDefault:"60s"`
	RateLimitedCooldown time.Duration `env:"MFA_RATE_LIMITED_COOLDOWN" envDefault:"90s"`
}

// WithConfig applies the environment-driven tunables to the coordinator.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		if cfg.CodeLength > 0 {
			c.codeLength = cfg.CodeLength
		}
		if cfg.BaseCooldown > 0 {
			c.baseCooldown = cfg.BaseCooldown
		}
		if cfg.RateLimitedCooldown > 0 {
			c.rateLimitedCooldown = cfg.RateLimitedCooldown
		}
	}
}
