package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the application configuration.
// It's populated once by LoadConfig.
var AppConfig Configuration
var once sync.Once

// Configuration defines the structure for application settings.
type Configuration struct {
	ServerPort         string
	AppEnv             string
	LogLevel           string
	DBDriver           string // "sqlite" or "postgres"
	SQLitePath         string
	DatabaseURL        string
	CORSAllowedOrigins []string
	SeedData           bool
	TransitionPolicy   string // "any" or "forward"
	RedisAddress       string
	RedisPassword      string
	IssueCreateLimit   int           // requests per window and client, 0 disables the limiter
	IssueCreateWindow  time.Duration // rate limit window

	// Notices records every setting that fell back to its default, so the
	// caller can log them once a logger exists.
	Notices []string
}

const (
	defaultServerPort = "8080"        // Default server port.
	envServerPortKey  = "SERVER_PORT" // Environment variable name for the server port.
	defaultAppEnv     = "production"  // "development" switches to console logging.
	envAppEnvKey      = "APP_ENV"
	defaultLogLevel   = "info"
	envLogLevelKey    = "LOG_LEVEL"

	defaultDBDriver   = "sqlite" // "sqlite" or "postgres"
	envDBDriverKey    = "DB_DRIVER"
	defaultSQLitePath = "data/civic_issues.db"
	envSQLitePathKey  = "SQLITE_DB_PATH"
	envDatabaseURLKey = "DATABASE_URL" // PostgreSQL DSN, required when DB_DRIVER=postgres.

	defaultCORSOrigins      = "http://localhost:3000,http://localhost:3001" // Frontend dev servers.
	envCORSOriginsKey       = "CORS_ALLOWED_ORIGINS"
	defaultSeedData         = true
	envSeedDataKey          = "SEED_DATA"
	defaultTransitionPolicy = "any" // Any status may follow any other.
	envTransitionPolicyKey  = "STATUS_TRANSITION_POLICY"

	envRedisAddressKey       = "REDIS_ADDRESS" // Enables the creation rate limiter when set.
	envRedisPasswordKey      = "REDIS_PASSWORD"
	envIssueCreateLimitKey   = "ISSUE_CREATE_LIMIT"
	defaultIssueCreateWindow = 24 * time.Hour
	envIssueCreateWindowKey  = "ISSUE_CREATE_WINDOW"
)

// LoadConfig loads configuration from a .env file, environment variables or defaults.
// It should be called once at application startup.
func LoadConfig() {
	once.Do(func() {
		_ = godotenv.Load()
		AppConfig = Load()
	})
}

// Load reads the current environment into a fresh Configuration without
// touching AppConfig.
func Load() Configuration {
	cfg := Configuration{}

	cfg.ServerPort = cfg.stringEnv(envServerPortKey, defaultServerPort)
	cfg.AppEnv = cfg.stringEnv(envAppEnvKey, defaultAppEnv)
	cfg.LogLevel = cfg.stringEnv(envLogLevelKey, defaultLogLevel)
	cfg.DBDriver = strings.ToLower(cfg.stringEnv(envDBDriverKey, defaultDBDriver))
	cfg.SQLitePath = cfg.stringEnv(envSQLitePathKey, defaultSQLitePath)
	cfg.DatabaseURL = os.Getenv(envDatabaseURLKey)
	cfg.CORSAllowedOrigins = splitList(cfg.stringEnv(envCORSOriginsKey, defaultCORSOrigins))
	cfg.SeedData = cfg.boolEnv(envSeedDataKey, defaultSeedData)
	cfg.TransitionPolicy = strings.ToLower(cfg.stringEnv(envTransitionPolicyKey, defaultTransitionPolicy))
	cfg.RedisAddress = os.Getenv(envRedisAddressKey)
	cfg.RedisPassword = os.Getenv(envRedisPasswordKey)
	cfg.IssueCreateLimit = cfg.intEnv(envIssueCreateLimitKey, 0)
	cfg.IssueCreateWindow = cfg.durationEnv(envIssueCreateWindowKey, defaultIssueCreateWindow)

	return cfg
}

// Validate checks combinations that cannot be defaulted.
func (c Configuration) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s must be set when %s=postgres", envDatabaseURLKey, envDBDriverKey)
		}
	default:
		return fmt.Errorf("unsupported %s %q", envDBDriverKey, c.DBDriver)
	}
	if c.IssueCreateLimit > 0 && c.RedisAddress == "" {
		return fmt.Errorf("%s requires %s", envIssueCreateLimitKey, envRedisAddressKey)
	}
	return nil
}

// RateLimitEnabled reports whether POST /issues should be rate limited.
func (c Configuration) RateLimitEnabled() bool {
	return c.IssueCreateLimit > 0 && c.RedisAddress != ""
}

func (c *Configuration) stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	c.Notices = append(c.Notices, fmt.Sprintf("%s not set, using default %q", key, def))
	return def
}

func (c *Configuration) boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.Notices = append(c.Notices, fmt.Sprintf("%s=%q is not a boolean, using default %t", key, v, def))
		return def
	}
	return b
}

func (c *Configuration) intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.Notices = append(c.Notices, fmt.Sprintf("%s=%q is not an integer, using default %d", key, v, def))
		return def
	}
	return n
}

func (c *Configuration) durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.Notices = append(c.Notices, fmt.Sprintf("%s=%q is not a duration, using default %s", key, v, def))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
