package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvPort          = "TANYA_PORT"
	EnvDebug         = "TANYA_DEBUG"
	EnvRedisAddr     = "TANYA_REDIS_ADDR"
	EnvRedisPassword = "TANYA_REDIS_PASSWORD"
	EnvAuditDB       = "TANYA_AUDIT_DB"
)

// ApplyEnv loads a .env file next to the config (if present) and overrides cfg from
// TANYA_* variables. Variables already set in the process environment win over .env.
func ApplyEnv(cfg *Config, configDir string) error {
	envFile := filepath.Join(configDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Auth.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Auth.Redis.Password = v
	}
	if v := os.Getenv(EnvAuditDB); v != "" {
		cfg.Audit.DatabasePath = v
	}
	return nil
}
