package config

import (
	"os"
	"strconv"

	"github.com/uplinepay/backend/internal/models"
)

// Config holds all configuration for the application
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Redis       RedisConfig
	Plan        PlanConfig
	Environment string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MaxIdle  int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PlanConfig holds the compensation-plan defaults that are not stored in
// the rules tables.
type PlanConfig struct {
	MaxHierarchyLevels   int
	AutoActivation       bool
	ResidualEnabled      bool
	ResidualPeriodMonths int
	ResidualFactor       float64
	FraudSweepHour       int
}

// BaseRuleSet converts the plan settings into the scalar part of a
// rule-set snapshot. Tiers, bonuses, caps and thresholds are filled in
// by the configuration provider.
func (p PlanConfig) BaseRuleSet() models.RuleSet {
	return models.RuleSet{
		MaxHierarchyLevels:   p.MaxHierarchyLevels,
		AutoActivation:       p.AutoActivation,
		ResidualEnabled:      p.ResidualEnabled,
		ResidualPeriodMonths: p.ResidualPeriodMonths,
		ResidualFactor:       p.ResidualFactor,
	}
}

// LoadConfig loads configuration from the environment
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/uplinepay?sslmode=disable"),
			MaxConns: getEnvInt("DATABASE_MAX_CONNS", 20),
			MaxIdle:  getEnvInt("DATABASE_MAX_IDLE", 5),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Plan: PlanConfig{
			MaxHierarchyLevels:   getEnvInt("PLAN_MAX_HIERARCHY_LEVELS", 10),
			AutoActivation:       getEnvBool("PLAN_AUTO_ACTIVATION", true),
			ResidualEnabled:      getEnvBool("PLAN_RESIDUAL_ENABLED", true),
			ResidualPeriodMonths: getEnvInt("PLAN_RESIDUAL_PERIOD_MONTHS", 12),
			ResidualFactor:       getEnvFloat("PLAN_RESIDUAL_FACTOR", 0.5),
			FraudSweepHour:       getEnvInt("FRAUD_SWEEP_HOUR", 3),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1"
}

// getEnvFloat retrieves an environment variable as a float or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}
