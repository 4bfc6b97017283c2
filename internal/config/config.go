package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"soul-carbon/carbon-tracker-backend/pkg/hedera"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Hedera    hedera.Config   `json:"hedera"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int    `json:"max_connections"`
	MaxIdleConns   int    `json:"max_idle_conns"`
	MigrationsPath string `json:"migrations_path"`
}

// RedisConfig represents the leaderboard cache configuration
type RedisConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

// SecurityConfig holds JWT settings
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	JWTExpiry time.Duration `json:"jwt_expiry"`
}

// RateLimitConfig holds the per-IP rate limiter settings
type RateLimitConfig struct {
	GeneralPerMinute int `json:"general_per_minute"`
	AuthPer15Min     int `json:"auth_per_15_min"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbon_tracker",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MigrationsPath: "migrations",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			CacheTTL: time.Minute,
		},
		Hedera: hedera.Config{
			Network: "testnet",
		},
		Security: SecurityConfig{
			JWTExpiry: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			GeneralPerMinute: 100,
			AuthPer15Min:     5,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if operatorID := os.Getenv("HEDERA_OPERATOR_ID"); operatorID != "" {
		config.Hedera.OperatorID = operatorID
	}
	if operatorKey := os.Getenv("HEDERA_OPERATOR_PRIVATE_KEY"); operatorKey != "" {
		config.Hedera.OperatorKey = operatorKey
	}
	if network := os.Getenv("HEDERA_NETWORK"); network != "" {
		config.Hedera.Network = network
	}
	if topicID := os.Getenv("HCS_TOPIC_ID"); topicID != "" {
		config.Hedera.TopicID = topicID
	}
	if tokenID := os.Getenv("OFFSET_TOKEN_ID"); tokenID != "" {
		config.Hedera.TokenID = tokenID
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
