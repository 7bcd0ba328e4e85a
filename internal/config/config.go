package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Migration MigrationConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	SessionTTL           time.Duration // Default login lifetime
	RememberMeTTL        time.Duration // Lifetime when "remember me" is requested
	CookieName           string
	CookieDomain         string
	CookieSecure         bool
	CleanupInterval      time.Duration
	DefaultGroup         string // Fallback group for provisioned users when no setting is stored
	LoginRateLimitPerMin int
}

type MigrationConfig struct {
	StatementTimeout time.Duration // Upper bound for any single migration step
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "lantern"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "7575"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionTTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			RememberMeTTL:        getEnvAsDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour),
			CookieName:           getEnv("SESSION_COOKIE_NAME", "lantern_session"),
			CookieDomain:         getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:         getEnvAsBool("SESSION_COOKIE_SECURE", env == "production"),
			CleanupInterval:      getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour),
			DefaultGroup:         getEnv("DEFAULT_GROUP", "user"),
			LoginRateLimitPerMin: getEnvAsInt("LOGIN_RATE_LIMIT_PER_MINUTE", 5),
		},
		Migration: MigrationConfig{
			StatementTimeout: getEnvAsDuration("MIGRATION_STATEMENT_TIMEOUT", 5*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateAuth(&cfg.Auth); err != nil {
		return nil, err
	}

	if cfg.Migration.StatementTimeout <= 0 {
		return nil, fmt.Errorf("MIGRATION_STATEMENT_TIMEOUT must be positive (got %s)", cfg.Migration.StatementTimeout)
	}

	return cfg, nil
}

// validateAuth rejects session settings that would produce unusable cookies
func validateAuth(auth *AuthConfig) error {
	if auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive (got %s)", auth.SessionTTL)
	}
	if auth.RememberMeTTL < auth.SessionTTL {
		return fmt.Errorf("SESSION_REMEMBER_TTL (%s) must not be shorter than SESSION_TTL (%s)",
			auth.RememberMeTTL, auth.SessionTTL)
	}
	if strings.TrimSpace(auth.CookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME cannot be empty")
	}
	if strings.TrimSpace(auth.DefaultGroup) == "" {
		return fmt.Errorf("DEFAULT_GROUP cannot be empty")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	originsStr := getEnv("ALLOWED_ORIGINS", "")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	if env == "production" {
		return []string{} // Default to no origins in production
	}

	// Development: allow the dashboard dev server
	return []string{
		"http://localhost:3000",
		"http://localhost:7575",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:7575",
	}
}
