package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Postgres  PostgresConfig  `json:"postgres"`
	Auth      AuthConfig      `json:"auth"`
	Gemini    GeminiConfig    `json:"gemini"`
	Quota     QuotaConfig     `json:"quota"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	ExpiryHours int    `json:"expiry_hours"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// Daily caps and per-tier monthly token ceilings. The daily numbers are
// deliberately small to bound infrastructure cost per free user.
type QuotaConfig struct {
	DailyReads      int64            `json:"daily_reads"`
	DailyWrites     int64            `json:"daily_writes"`
	DailyAIRequests int64            `json:"daily_ai_requests"`
	MonthlyTokens   map[string]int64 `json:"monthly_tokens"`
	MaxInputTokens  int              `json:"max_input_tokens"`
	MaxOutputTokens int              `json:"max_output_tokens"`
}

type RateLimitConfig struct {
	Capacity   float64 `json:"capacity"`
	RefillRate float64 `json:"refill_rate"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	return &config, nil
}

// Secrets and connection strings come from the environment so the JSON file
// can be committed without them.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		c.Redis.Port = port
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Auth.ExpiryHours <= 0 {
		c.Auth.ExpiryHours = 24
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash-lite"
	}
	if c.Quota.DailyReads <= 0 {
		c.Quota.DailyReads = 30
	}
	if c.Quota.DailyWrites <= 0 {
		c.Quota.DailyWrites = 5
	}
	if c.Quota.DailyAIRequests <= 0 {
		c.Quota.DailyAIRequests = 3
	}
	if len(c.Quota.MonthlyTokens) == 0 {
		c.Quota.MonthlyTokens = map[string]int64{
			"free":       10000,
			"premium":    100000,
			"enterprise": 500000,
		}
	}
	if c.Quota.MaxInputTokens <= 0 {
		c.Quota.MaxInputTokens = 512
	}
	if c.Quota.MaxOutputTokens <= 0 {
		c.Quota.MaxOutputTokens = 256
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillRate <= 0 {
		c.RateLimit.RefillRate = 0.5
	}
}

// GetRedisAddr returns host:port for the Redis client. Empty host means
// Redis is not configured and the gateway runs on the SQL fallback.
func (r *RedisConfig) GetRedisAddr() string {
	if r.Host == "" {
		return ""
	}

	port := r.Port
	if port == "" {
		port = "6379"
	}

	return fmt.Sprintf("%s:%s", r.Host, port)
}
