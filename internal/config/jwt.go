package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// minSecretLen is the shortest HMAC secret accepted for API tokens.
const minSecretLen = 16

// JWTConfig configures API bearer tokens. Auth is off when no secret is set.
type JWTConfig struct {
	Secret string `toml:"secret"`
	// SecretFile is read when Secret is empty (API_JWT_SECRET_FILE, for mounted secrets).
	SecretFile      string `toml:"secret_file"`
	ExpirationHours int    `toml:"expiration_hours"`
}

// Enabled reports whether API authentication is configured.
func (c JWTConfig) Enabled() bool {
	return c.Secret != ""
}

// Expiration is the lifetime of issued tokens.
func (c JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// Validate checks an enabled configuration. A disabled one is always valid.
func (c JWTConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if len(c.Secret) < minSecretLen {
		return fmt.Errorf("config error: API_JWT_SECRET must be at least %d characters", minSecretLen)
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("config error: API_JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}

// resolveSecret loads Secret from SecretFile when only the file is given.
func (c *JWTConfig) resolveSecret() error {
	if c.Secret != "" || c.SecretFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.SecretFile)
	if err != nil {
		return fmt.Errorf("config error: failed to read API_JWT_SECRET_FILE: %w", err)
	}
	c.Secret = strings.TrimSpace(string(data))
	if c.Secret == "" {
		return fmt.Errorf("config error: API_JWT_SECRET_FILE %s is empty", c.SecretFile)
	}
	return nil
}
