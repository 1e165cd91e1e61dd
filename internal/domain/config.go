package domain

import (
	"time"
)

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// KnowledgeConfig represents knowledge base configuration
type KnowledgeConfig struct {
	Path string `mapstructure:"path"`
}

// AuditConfig represents audit store configuration
type AuditConfig struct {
	Driver     string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   DatabaseConfig `mapstructure:"postgres"`
}

// DatabaseConfig represents Postgres connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RetrievalConfig represents the evidence retrieval client configuration
type RetrievalConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MemoryCacheTTL time.Duration `mapstructure:"memory_cache_ttl"`
	MaxMemorySize  int           `mapstructure:"max_memory_size"`
	RedisEnabled   bool          `mapstructure:"redis_enabled"`
	RedisURL       string        `mapstructure:"redis_url"`
	RedisCacheTTL  time.Duration `mapstructure:"redis_cache_ttl"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second
	RateBurst      int           `mapstructure:"rate_burst"`
	BreakerMaxFail uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// ScoringConfig carries the tunable scoring constants. The formula shapes are
// fixed; only the magnitudes are configuration.
type ScoringConfig struct {
	PointsPerMatch        float64 `mapstructure:"points_per_match"`
	MinMatches            int     `mapstructure:"min_matches"`
	CardiacNegationPen    float64 `mapstructure:"cardiac_negation_penalty"`
	GINegationPen         float64 `mapstructure:"gi_negation_penalty"`
	OverlapBonusCap       float64 `mapstructure:"overlap_bonus_cap"`
	OverlapBonusPerMatch  float64 `mapstructure:"overlap_bonus_per_match"`
	OverlapSinglePen      float64 `mapstructure:"overlap_single_penalty"`
	OverlapDoublePen      float64 `mapstructure:"overlap_double_penalty"`
	OverlapNegationPen    float64 `mapstructure:"overlap_negation_penalty"`
	HighConfidenceCutoff  float64 `mapstructure:"high_confidence_cutoff"`
	DownrankFewFactor     float64 `mapstructure:"downrank_few_factor"`
	DownrankLimitedFactor float64 `mapstructure:"downrank_limited_factor"`
	MaxEvidencePerSource  int     `mapstructure:"max_evidence_per_source"`
	MaxEvidenceSources    int     `mapstructure:"max_evidence_sources"`
}

// DefaultScoringConfig returns the scoring constants in production use
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		PointsPerMatch:        10,
		MinMatches:            1,
		CardiacNegationPen:    20,
		GINegationPen:         10,
		OverlapBonusCap:       10,
		OverlapBonusPerMatch:  2,
		OverlapSinglePen:      15,
		OverlapDoublePen:      5,
		OverlapNegationPen:    5,
		HighConfidenceCutoff:  50,
		DownrankFewFactor:     0.4,
		DownrankLimitedFactor: 0.7,
		MaxEvidencePerSource:  2,
		MaxEvidenceSources:    3,
	}
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
