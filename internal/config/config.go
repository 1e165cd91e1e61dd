package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinical-ddx-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clinical-ddx-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("DDX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Knowledge base defaults
	viper.SetDefault("knowledge.path", "config/knowledge_base.json")

	// Audit store defaults
	viper.SetDefault("audit.driver", "sqlite")
	viper.SetDefault("audit.sqlite_path", "./data/audit.db")
	viper.SetDefault("audit.postgres.host", "localhost")
	viper.SetDefault("audit.postgres.port", 5432)
	viper.SetDefault("audit.postgres.database", "ddx_audit")
	viper.SetDefault("audit.postgres.username", "postgres")
	viper.SetDefault("audit.postgres.password", "")
	viper.SetDefault("audit.postgres.ssl_mode", "disable")
	viper.SetDefault("audit.postgres.max_open_conns", 25)
	viper.SetDefault("audit.postgres.max_idle_conns", 5)
	viper.SetDefault("audit.postgres.conn_max_lifetime", "5m")

	// Evidence retrieval defaults
	viper.SetDefault("retrieval.base_url", "http://localhost:9200")
	viper.SetDefault("retrieval.timeout", "10s")
	viper.SetDefault("retrieval.memory_cache_ttl", "15m")
	viper.SetDefault("retrieval.max_memory_size", 1000)
	viper.SetDefault("retrieval.redis_enabled", false)
	viper.SetDefault("retrieval.redis_url", "redis://localhost:6379")
	viper.SetDefault("retrieval.redis_cache_ttl", "24h")
	viper.SetDefault("retrieval.rate_limit", 20)
	viper.SetDefault("retrieval.rate_burst", 5)
	viper.SetDefault("retrieval.breaker_max_failures", 5)
	viper.SetDefault("retrieval.breaker_timeout", "30s")

	// Scoring defaults
	defaults := domain.DefaultScoringConfig()
	viper.SetDefault("scoring.points_per_match", defaults.PointsPerMatch)
	viper.SetDefault("scoring.min_matches", defaults.MinMatches)
	viper.SetDefault("scoring.cardiac_negation_penalty", defaults.CardiacNegationPen)
	viper.SetDefault("scoring.gi_negation_penalty", defaults.GINegationPen)
	viper.SetDefault("scoring.overlap_bonus_cap", defaults.OverlapBonusCap)
	viper.SetDefault("scoring.overlap_bonus_per_match", defaults.OverlapBonusPerMatch)
	viper.SetDefault("scoring.overlap_single_penalty", defaults.OverlapSinglePen)
	viper.SetDefault("scoring.overlap_double_penalty", defaults.OverlapDoublePen)
	viper.SetDefault("scoring.overlap_negation_penalty", defaults.OverlapNegationPen)
	viper.SetDefault("scoring.high_confidence_cutoff", defaults.HighConfidenceCutoff)
	viper.SetDefault("scoring.downrank_few_factor", defaults.DownrankFewFactor)
	viper.SetDefault("scoring.downrank_limited_factor", defaults.DownrankLimitedFactor)
	viper.SetDefault("scoring.max_evidence_per_source", defaults.MaxEvidencePerSource)
	viper.SetDefault("scoring.max_evidence_sources", defaults.MaxEvidenceSources)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetAuditConfig returns audit store configuration
func (m *Manager) GetAuditConfig() *domain.AuditConfig {
	return &m.config.Audit
}

// GetRetrievalConfig returns evidence retrieval configuration
func (m *Manager) GetRetrievalConfig() *domain.RetrievalConfig {
	return &m.config.Retrieval
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate knowledge base configuration
	if config.Knowledge.Path == "" {
		return fmt.Errorf("knowledge base path is required")
	}

	// Validate audit store configuration
	switch config.Audit.Driver {
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite path is required")
		}
	case "postgres":
		if config.Audit.Postgres.Host == "" {
			return fmt.Errorf("audit postgres host is required")
		}
		if config.Audit.Postgres.Database == "" {
			return fmt.Errorf("audit postgres database name is required")
		}
		if config.Audit.Postgres.Username == "" {
			return fmt.Errorf("audit postgres username is required")
		}
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}

	// Validate retrieval configuration
	if config.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval base URL is required")
	}
	if config.Retrieval.RedisEnabled && config.Retrieval.RedisURL == "" {
		return fmt.Errorf("retrieval Redis URL is required when Redis is enabled")
	}

	// Validate scoring configuration
	if config.Scoring.PointsPerMatch <= 0 {
		return fmt.Errorf("scoring points per match must be positive")
	}
	if config.Scoring.MinMatches < 1 {
		return fmt.Errorf("scoring minimum matches must be at least 1")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
