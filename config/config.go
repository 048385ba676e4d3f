package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete vault core configuration
type Config struct {
	DataDir       string
	MasterKeyHex  string
	Session       SessionConfig
	Audit         AuditConfig
	Search        SearchConfig
	Observability ObservabilityConfig
	Environment   string
}

// SessionConfig holds elevated session configuration
type SessionConfig struct {
	TTL time.Duration
	// VoiceConfidenceMin is the minimum confidence the external voice
	// authentication service must report before a session is created.
	VoiceConfidenceMin float64
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	BufferSize    int
	RetentionDays int
	StopTimeout   time.Duration
}

// SearchConfig holds scoped search fan-out caps
type SearchConfig struct {
	DefaultLimit  int
	PerContactCap int
	GlobalCap     int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		DataDir:      getEnv("MEMVAULT_DATA_DIR", "data"),
		MasterKeyHex: getEnv("MEMVAULT_MASTER_KEY", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),
		Session: SessionConfig{
			TTL:                getEnvAsDuration("MEMVAULT_SESSION_TTL", 10*time.Minute),
			VoiceConfidenceMin: getEnvAsFloat("MEMVAULT_VOICE_CONFIDENCE_MIN", 0.85),
		},
		Audit: AuditConfig{
			BufferSize:    getEnvAsInt("MEMVAULT_AUDIT_BUFFER", 10000),
			RetentionDays: getEnvAsInt("MEMVAULT_AUDIT_RETENTION_DAYS", 30),
			StopTimeout:   getEnvAsDuration("MEMVAULT_AUDIT_STOP_TIMEOUT", 5*time.Second),
		},
		Search: SearchConfig{
			DefaultLimit:  getEnvAsInt("MEMVAULT_SEARCH_LIMIT", 20),
			PerContactCap: getEnvAsInt("MEMVAULT_SEARCH_PER_CONTACT_CAP", 3),
			GlobalCap:     getEnvAsInt("MEMVAULT_SEARCH_GLOBAL_CAP", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.MasterKeyHex == "" {
		return fmt.Errorf("master key is required: set MEMVAULT_MASTER_KEY")
	}
	if _, err := c.MasterKey(); err != nil {
		return err
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.VoiceConfidenceMin < 0 || c.Session.VoiceConfidenceMin > 1 {
		return fmt.Errorf("voice confidence threshold must be in [0,1]")
	}
	if c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit buffer size must be positive")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}
	if c.Search.PerContactCap <= 0 || c.Search.GlobalCap <= 0 {
		return fmt.Errorf("search caps must be positive")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// MasterKey decodes the hex master key. It must be exactly 32 bytes.
func (c *Config) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ContactsDir returns the root directory for per-owner memory storage
func (c *Config) ContactsDir() string {
	return filepath.Join(c.DataDir, "contacts")
}

// AuditDir returns the directory holding daily audit files
func (c *Config) AuditDir() string {
	return filepath.Join(c.DataDir, "audit")
}

// TenantsFile returns the path of the tenancy source file
func (c *Config) TenantsFile() string {
	return filepath.Join(c.DataDir, "tenants", "tenants.yaml")
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
