package authkit

import (
	"errors"
	"time"
)

// TOTPConfig defines a public type used by authkit APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

// PendingLoginConfig defines a public type used by authkit APIs.
//
// PendingLoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PendingLoginConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

// AuditConfig defines a public type used by authkit APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	TOTP         TOTPConfig
	PendingLogin PendingLoginConfig
	Audit        AuditConfig
}

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer: "authkit",
			Digits: 6,
			Period: 30,
			Skew:   1,
		},
		PendingLogin: PendingLoginConfig{
			TTL:         3 * time.Minute,
			MaxAttempts: 5,
		},
		Audit: AuditConfig{
			BaseURL:        "http://localhost:8081",
			ConnectTimeout: 3 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.TOTP.Issuer == "" {
		return errors.New("totp issuer must not be empty")
	}
	if c.TOTP.Digits != 6 {
		return errors.New("totp digits must be 6")
	}
	if c.TOTP.Period != 30 {
		return errors.New("totp period must be 30 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be between 0 and 2 steps")
	}
	if c.PendingLogin.TTL <= 0 || c.PendingLogin.TTL > 15*time.Minute {
		return errors.New("pending login TTL must be positive and at most 15 minutes")
	}
	if c.PendingLogin.MaxAttempts < 1 || c.PendingLogin.MaxAttempts > 10 {
		return errors.New("pending login max attempts must be between 1 and 10")
	}
	if c.Audit.ConnectTimeout <= 0 {
		return errors.New("audit connect timeout must be positive")
	}
	if c.Audit.ReadTimeout <= 0 {
		return errors.New("audit read timeout must be positive")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TOTP.Issuer == "" {
		c.TOTP.Issuer = def.TOTP.Issuer
	}
	if c.TOTP.Digits == 0 {
		c.TOTP.Digits = def.TOTP.Digits
	}
	if c.TOTP.Period == 0 {
		c.TOTP.Period = def.TOTP.Period
	}
	if c.TOTP.Skew == 0 {
		c.TOTP.Skew = def.TOTP.Skew
	}
	if c.PendingLogin.TTL == 0 {
		c.PendingLogin.TTL = def.PendingLogin.TTL
	}
	if c.PendingLogin.MaxAttempts == 0 {
		c.PendingLogin.MaxAttempts = def.PendingLogin.MaxAttempts
	}
	if c.Audit.BaseURL == "" {
		c.Audit.BaseURL = def.Audit.BaseURL
	}
	if c.Audit.ConnectTimeout == 0 {
		c.Audit.ConnectTimeout = def.Audit.ConnectTimeout
	}
	if c.Audit.ReadTimeout == 0 {
		c.Audit.ReadTimeout = def.Audit.ReadTimeout
	}
	return c
}
