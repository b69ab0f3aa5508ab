package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string
	Env     string
	BaseURL string
}

// JWTConfig holds JWT configuration for portal session tokens
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// EveConfig holds the EVE SSO and ESI settings. The portal talks to two
// external services: the SSO (login + token refresh) and the ESI game API
// (character/corporation/alliance data and scoped membership lists).
type EveConfig struct {
	AllianceID       int64
	UserAgent        string
	ESIBaseURL       string
	SSOBaseURL       string
	ClientID         string
	ClientSecret     string
	CallbackURL      string
	CorpClientID     string
	CorpClientSecret string
	CorpCallbackURL  string
	CorpScope        string
	AdminCharacterID int64
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Eve         EveConfig
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			Env:     getEnv("APP_ENV", "development"),
			BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 336),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Eve: EveConfig{
			AllianceID:       getEnvAsInt64("EVE_ALLIANCE_ID", 0),
			UserAgent:        fmt.Sprintf("Apate Auth App (%s)", getEnv("EVE_USER_AGENT_EMAIL", "")),
			ESIBaseURL:       getEnv("EVE_ESI_BASE_URL", "https://esi.evetech.net/latest"),
			SSOBaseURL:       getEnv("EVE_SSO_BASE_URL", "https://login.eveonline.com"),
			ClientID:         getEnv("EVE_CLIENT_ID", ""),
			ClientSecret:     getEnv("EVE_CLIENT_SECRET", ""),
			CallbackURL:      getEnv("BASE_URL", "http://localhost:8080") + getEnv("EVE_CALLBACK_PATH", "/eve/callback"),
			CorpClientID:     getEnv("EVE_CORP_CLIENT_ID", ""),
			CorpClientSecret: getEnv("EVE_CORP_CLIENT_SECRET", ""),
			CorpCallbackURL:  getEnv("BASE_URL", "http://localhost:8080") + "/corp_management/eve/corp/callback",
			CorpScope:        getEnv("EVE_CORP_SCOPE", "esi-corporations.read_corporation_membership.v1"),
			AdminCharacterID: getEnvAsInt64("EVE_ADMIN_CHARACTER_ID", 0),
		},
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Int64("alliance_id", c.Eve.AllianceID),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as 64-bit integers
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
