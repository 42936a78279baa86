// Package config provides configuration loading and structs for the tanya server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Documents DocumentsConfig `yaml:"documents"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	BasePath       string        `yaml:"base_path"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DocumentsConfig holds the document source settings.
type DocumentsConfig struct {
	Directories    []string `yaml:"directories"`
	Extensions     []string `yaml:"extensions"`
	Recursive      *bool    `yaml:"recursive"`
	Watch          bool     `yaml:"watch"`
	ReloadSchedule string   `yaml:"reload_schedule"`
}

// RecursiveOrDefault returns whether to load recursively; defaults to true when unset.
func (d *DocumentsConfig) RecursiveOrDefault() bool {
	if d.Recursive != nil {
		return *d.Recursive
	}
	return true
}

// ChunkingConfig holds chunk sizes, measured in words.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds retrieval limits.
type RetrievalConfig struct {
	TopK    int `yaml:"top_k"`
	MaxTopK int `yaml:"max_top_k"`
}

// AnswerConfig holds confidence cut points and answer assembly settings.
type AnswerConfig struct {
	HighThreshold   int     `yaml:"high_threshold"`
	MediumThreshold int     `yaml:"medium_threshold"`
	SupportRatio    float64 `yaml:"support_ratio"`
}

// AuthConfig holds login and session settings.
type AuthConfig struct {
	SessionTTL      time.Duration   `yaml:"session_ttl"`
	Store           string          `yaml:"store"`
	Redis           RedisConfig     `yaml:"redis"`
	CleanupSchedule string          `yaml:"cleanup_schedule"`
	LoginRateLimit  RateLimitConfig `yaml:"login_rate_limit"`
	Users           []UserConfig    `yaml:"users"`
}

// RedisConfig holds the Redis session store connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RateLimitConfig limits login attempts per client address.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// UserConfig is a staff account. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"password_hash"`
}

// AuditConfig holds the audit trail settings.
type AuditConfig struct {
	Enabled      *bool  `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// EnabledOrDefault returns whether auditing is on; defaults to true when unset.
func (a *AuditConfig) EnabledOrDefault() bool {
	if a.Enabled != nil {
		return *a.Enabled
	}
	return true
}

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Load reads and parses the config file at path, applies environment overrides and defaults,
// expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := ApplyEnv(&cfg, configDir); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Audit.DatabasePath = expandPath(cfg.Audit.DatabasePath, configDir)
	for i := range cfg.Documents.Directories {
		cfg.Documents.Directories[i] = expandPath(cfg.Documents.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size): got %d with chunk_size %d",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Answer.MediumThreshold <= 0 || c.Answer.MediumThreshold >= c.Answer.HighThreshold || c.Answer.HighThreshold > 100 {
		return fmt.Errorf("thresholds must satisfy 0 < medium < high <= 100: got medium=%d high=%d",
			c.Answer.MediumThreshold, c.Answer.HighThreshold)
	}
	if c.Answer.SupportRatio <= 0 || c.Answer.SupportRatio > 1 {
		return fmt.Errorf("support_ratio must be in (0, 1]: got %v", c.Answer.SupportRatio)
	}
	if c.Retrieval.TopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("top_k %d exceeds max_top_k %d", c.Retrieval.TopK, c.Retrieval.MaxTopK)
	}
	switch c.Auth.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Auth.Redis.Addr == "" {
			return fmt.Errorf("auth.redis.addr is required when auth.store is %q", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown auth.store %q", c.Auth.Store)
	}
	for i, u := range c.Auth.Users {
		if u.Email == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d]: email and password_hash are required", i)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
