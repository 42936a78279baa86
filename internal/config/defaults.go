package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Documents.Directories == nil {
		cfg.Documents.Directories = []string{"/usr/local/var/tanya/docs"}
	}
	if cfg.Documents.Extensions == nil {
		cfg.Documents.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".rtf"}
	}
	if cfg.Documents.Recursive == nil {
		t := true
		cfg.Documents.Recursive = &t
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 120
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 20
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 20
	}
	if cfg.Answer.HighThreshold == 0 {
		cfg.Answer.HighThreshold = 70
	}
	if cfg.Answer.MediumThreshold == 0 {
		cfg.Answer.MediumThreshold = 40
	}
	if cfg.Answer.SupportRatio == 0 {
		cfg.Answer.SupportRatio = 0.75
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 8 * time.Hour
	}
	if cfg.Auth.Store == "" {
		cfg.Auth.Store = StoreMemory
	}
	if cfg.Auth.Redis.KeyPrefix == "" {
		cfg.Auth.Redis.KeyPrefix = "tanya:session:"
	}
	if cfg.Auth.CleanupSchedule == "" {
		cfg.Auth.CleanupSchedule = "@every 15m"
	}
	if cfg.Auth.LoginRateLimit.PerMinute == 0 {
		cfg.Auth.LoginRateLimit.PerMinute = 10
	}
	if cfg.Auth.LoginRateLimit.Burst == 0 {
		cfg.Auth.LoginRateLimit.Burst = 5
	}
	if cfg.Audit.DatabasePath == "" {
		cfg.Audit.DatabasePath = "/usr/local/var/tanya/data/audit.db"
	}
}
