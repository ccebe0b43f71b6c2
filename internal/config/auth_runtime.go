package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultRefreshTTL          = "24h"
	defaultRefreshKeepAliveTTL = "168h"
	defaultVerifyTokenTTL      = "24h"
	defaultResetTokenTTL       = "1h"
	defaultJWTSecret           = "change-me-jwt-secret"
	defaultRefreshTokenPepper  = "change-me-refresh-pepper"
	defaultEmailLookupPepper   = "change-me-lookup-pepper"
	defaultEmailEncryptionKey  = "change-me-encryption-key"
	defaultEmailEncryptionSalt = "change-me-encryption-salt"
)

type AuthRuntimeConfig struct {
	AppEnv string

	JWTSecret           string
	RefreshTTL          time.Duration
	RefreshKeepAliveTTL time.Duration
	RefreshTokenPepper  string

	EmailLookupPepper   string
	EmailEncryptionKey  string
	EmailEncryptionSalt string

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	DevMailEnabled bool
}

func LoadAuthRuntimeConfig() (*AuthRuntimeConfig, error) {
	cfg := &AuthRuntimeConfig{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshTokenPepper))
	cfg.EmailLookupPepper = strings.TrimSpace(getEnv("EMAIL_LOOKUP_PEPPER", defaultEmailLookupPepper))
	cfg.EmailEncryptionKey = strings.TrimSpace(getEnv("EMAIL_ENCRYPTION_KEY", defaultEmailEncryptionKey))
	cfg.EmailEncryptionSalt = strings.TrimSpace(getEnv("EMAIL_ENCRYPTION_SALT", defaultEmailEncryptionSalt))

	var err error
	cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL)
	if err != nil {
		return nil, err
	}
	cfg.RefreshKeepAliveTTL, err = parseDurationEnv("REFRESH_TTL_KEEP_ALIVE", defaultRefreshKeepAliveTTL)
	if err != nil {
		return nil, err
	}
	cfg.VerifyTokenTTL, err = parseDurationEnv("VERIFY_TOKEN_TTL", defaultVerifyTokenTTL)
	if err != nil {
		return nil, err
	}
	cfg.ResetTokenTTL, err = parseDurationEnv("RESET_TOKEN_TTL", defaultResetTokenTTL)
	if err != nil {
		return nil, err
	}

	cfg.DevMailEnabled = parseBoolEnv("DEV_MAIL_ENABLED", "true")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *AuthRuntimeConfig) error {
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.RefreshKeepAliveTTL < cfg.RefreshTTL {
		return fmt.Errorf("REFRESH_TTL_KEEP_ALIVE must be >= REFRESH_TTL")
	}
	if cfg.VerifyTokenTTL <= 0 {
		return fmt.Errorf("VERIFY_TOKEN_TTL must be > 0")
	}
	if cfg.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		secrets := map[string][2]string{
			"JWT_SECRET":            {cfg.JWTSecret, defaultJWTSecret},
			"REFRESH_TOKEN_PEPPER":  {cfg.RefreshTokenPepper, defaultRefreshTokenPepper},
			"EMAIL_LOOKUP_PEPPER":   {cfg.EmailLookupPepper, defaultEmailLookupPepper},
			"EMAIL_ENCRYPTION_KEY":  {cfg.EmailEncryptionKey, defaultEmailEncryptionKey},
			"EMAIL_ENCRYPTION_SALT": {cfg.EmailEncryptionSalt, defaultEmailEncryptionSalt},
		}
		for name, v := range secrets {
			if isEmptyOrDefault(v[0], v[1]) {
				return fmt.Errorf("in prod/release %s must be set and not default", name)
			}
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
