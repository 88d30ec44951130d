package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the flowhook server and worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// SessionConfig configures verification of dashboard session tokens. The
// tokens themselves are minted by the external auth provider; flowhook only
// verifies the shared-secret signature and reads the org/role claims.
type SessionConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

type JobsConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxAttempts      int
	ExecutionTimeout time.Duration
	BackoffBase      time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("FLOWHOOK_PORT", 8080),
			Env:  envString("FLOWHOOK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Session: SessionConfig{
			JWTSecret: os.Getenv("SESSION_JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: envInt("RATE_LIMIT_REQUESTS", 120),
			Window:            envDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
		Jobs: JobsConfig{
			BatchSize:        envInt("JOBS_BATCH_SIZE", 25),
			PollInterval:     envDuration("JOBS_POLL_INTERVAL", 30*time.Second),
			MaxAttempts:      envInt("JOBS_MAX_ATTEMPTS", 3),
			ExecutionTimeout: envDuration("JOBS_EXECUTION_TIMEOUT", 60*time.Second),
			BackoffBase:      envDuration("JOBS_BACKOFF_BASE", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Session.JWTSecret == "" {
		return fmt.Errorf("SESSION_JWT_SECRET is required")
	}

	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimit.RequestsPerWindow)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window)
	}

	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("JOBS_BATCH_SIZE must be positive, got %d", c.Jobs.BatchSize)
	}
	if c.Jobs.MaxAttempts <= 0 {
		return fmt.Errorf("JOBS_MAX_ATTEMPTS must be positive, got %d", c.Jobs.MaxAttempts)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
