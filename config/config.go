// Package config has the configuration for the app
package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the app runs in
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// ParseEnvironment accepts the short and long environment names
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	// Dataset artifacts
	RawDataPath      string
	EnrichedDataPath string
	EmbeddingsPath   string
	LexiconPath      string // optional vocabulary extension

	CandidatePoolSize    int
	ExtractWorkers       int
	ReloadSchedule       string        // gocron At() times, e.g. "06:00;18:00"
	AlternativesCacheTTL time.Duration // 0 disables the cache

	// OpenAI-compatible embeddings endpoint
	EmbeddingAPIKey    string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingBatchSize int
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		RawDataPath:      getEnvWithDefault("RAW_DATA_PATH", "data/sempex.csv"),
		EnrichedDataPath: getEnvWithDefault("ENRICHED_DATA_PATH", "data/cleaned_sempex.csv"),
		EmbeddingsPath:   getEnvWithDefault("EMBEDDINGS_PATH", "data/embeddings.npy"),
		LexiconPath:      os.Getenv("LEXICON_PATH"),

		CandidatePoolSize:    getIntEnvWithDefault("CANDIDATE_POOL_SIZE", 50),
		ExtractWorkers:       getIntEnvWithDefault("EXTRACT_WORKERS", runtime.GOMAXPROCS(0)),
		ReloadSchedule:       getEnvWithDefault("RELOAD_SCHEDULE", "06:00;18:00"),
		AlternativesCacheTTL: getDurationEnvWithDefault("ALTERNATIVES_CACHE_TTL", 10*time.Minute),

		EmbeddingAPIKey:    os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingBaseURL:   os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingModel:     getEnvWithDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingBatchSize: getIntEnvWithDefault("EMBEDDING_BATCH_SIZE", 64),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validatePositive(cfg.CandidatePoolSize, "CANDIDATE_POOL_SIZE", 10000); err != nil {
		return fmt.Errorf("invalid CANDIDATE_POOL_SIZE: %w", err)
	}

	if err := validatePositive(cfg.ExtractWorkers, "EXTRACT_WORKERS", 256); err != nil {
		return fmt.Errorf("invalid EXTRACT_WORKERS: %w", err)
	}

	if err := validatePositive(cfg.EmbeddingBatchSize, "EMBEDDING_BATCH_SIZE", 2048); err != nil {
		return fmt.Errorf("invalid EMBEDDING_BATCH_SIZE: %w", err)
	}

	if err := validateReloadSchedule(cfg.ReloadSchedule); err != nil {
		return fmt.Errorf("invalid RELOAD_SCHEDULE: %w", err)
	}

	if cfg.AlternativesCacheTTL < 0 {
		return fmt.Errorf("invalid ALTERNATIVES_CACHE_TTL: must not be negative, got: %s", cfg.AlternativesCacheTTL)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validatePositive(value int, name string, maxValue int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", name, value)
	}
	if value > maxValue {
		return fmt.Errorf("%s is too large (max %d), got: %d", name, maxValue, value)
	}
	return nil
}

// validateReloadSchedule checks a ";"-separated list of HH:MM times
func validateReloadSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("RELOAD_SCHEDULE cannot be empty")
	}

	for _, at := range strings.Split(schedule, ";") {
		if _, err := time.Parse("15:04", strings.TrimSpace(at)); err != nil {
			return fmt.Errorf("RELOAD_SCHEDULE entries must be HH:MM, got: %q", at)
		}
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault gets an environment variable as a duration ("10m", "1h")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"RAW_DATA_PATH",
		"ENRICHED_DATA_PATH",
		"EMBEDDINGS_PATH",
		"LEXICON_PATH",
		"CANDIDATE_POOL_SIZE",
		"EXTRACT_WORKERS",
		"RELOAD_SCHEDULE",
		"ALTERNATIVES_CACHE_TTL",
		"EMBEDDING_API_KEY",
		"EMBEDDING_BASE_URL",
		"EMBEDDING_MODEL",
		"EMBEDDING_BATCH_SIZE",
	}
}

// ValidateEmbeddingConfig checks the settings the embed command needs
func (c *Config) ValidateEmbeddingConfig() error {
	if c.EmbeddingAPIKey == "" && c.EmbeddingBaseURL == "" {
		return fmt.Errorf("EMBEDDING_API_KEY or EMBEDDING_BASE_URL must be set to build embeddings")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("EMBEDDING_MODEL cannot be empty")
	}
	return nil
}
