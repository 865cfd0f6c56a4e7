package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Security    SecurityConfig    `yaml:"security"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Auth        AuthConfig        `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds the optional async score ingestion configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// RateLimitConfig holds per-endpoint request limits, keyed by client
// address. Values are requests per the named period.
type RateLimitConfig struct {
	Enabled              bool     `yaml:"enabled"`
	CreateGamePerHour    int      `yaml:"create_game_per_hour"`
	SubmitScorePerMinute int      `yaml:"submit_score_per_minute"`
	LeaderboardPerMinute int      `yaml:"leaderboard_per_minute"`
	StatsPerMinute       int      `yaml:"stats_per_minute"`
	DefaultPerMinute     int      `yaml:"default_per_minute"`
	Blocklist            []string `yaml:"blocklist"`
}

// SecurityConfig holds transport hardening settings
type SecurityConfig struct {
	MaxRequestSize        int64  `yaml:"max_request_size"`
	EnableSecurityHeaders bool   `yaml:"enable_security_headers"`
	CORSOrigin            string `yaml:"cors_origin"`
}

// LeaderboardConfig holds query bounds for leaderboard reads
type LeaderboardConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// AuthConfig holds credential settings. KeyMaxAge is reserved for key
// expiration; it is loaded but not enforced anywhere.
type AuthConfig struct {
	KeyMaxAge time.Duration `yaml:"key_max_age"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 6400
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = "highscore"
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "highscore-submissions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "highscore-ingest"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Rate limit defaults
	if c.RateLimit.CreateGamePerHour == 0 {
		c.RateLimit.CreateGamePerHour = 5
	}
	if c.RateLimit.SubmitScorePerMinute == 0 {
		c.RateLimit.SubmitScorePerMinute = 100
	}
	if c.RateLimit.LeaderboardPerMinute == 0 {
		c.RateLimit.LeaderboardPerMinute = 60
	}
	if c.RateLimit.StatsPerMinute == 0 {
		c.RateLimit.StatsPerMinute = 60
	}
	if c.RateLimit.DefaultPerMinute == 0 {
		c.RateLimit.DefaultPerMinute = 100
	}

	// Security defaults
	if c.Security.MaxRequestSize == 0 {
		c.Security.MaxRequestSize = 1 << 20 // 1 MiB
	}
	if c.Security.CORSOrigin == "" {
		c.Security.CORSOrigin = "*"
	}

	// Leaderboard defaults
	if c.Leaderboard.DefaultLimit == 0 {
		c.Leaderboard.DefaultLimit = 10
	}
	if c.Leaderboard.MaxLimit == 0 {
		c.Leaderboard.MaxLimit = 100
	}

	// Auth defaults
	if c.Auth.KeyMaxAge == 0 {
		c.Auth.KeyMaxAge = 365 * 24 * time.Hour
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.RateLimit.Enabled = true
	cfg.Security.EnableSecurityHeaders = true
	cfg.applyDefaults()
	return cfg
}
