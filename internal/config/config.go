package config

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNoEncryptionKey indicates the encryption key is missing. Credential
// storage cannot work without it, so this is fatal at startup.
var ErrNoEncryptionKey = errors.New("encryption key is not configured")

// Config holds the application configuration
type Config struct {
	DatabasePath       string `json:"database_path"`
	APIPort            string `json:"api_port"`
	LogLevel           string `json:"log_level"`
	DataDir            string `json:"data_dir"`
	AttachmentsDir     string `json:"attachments_dir"` // empty means DataDir/attachments
	JWTSecret          string `json:"jwt_secret"`
	EncryptionKey      string `json:"encryption_key"` // required, encrypts stored OAuth tokens
	CORSOrigins        string `json:"cors_origins"`   // comma-separated, * for all
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
	SyncIntervalMin    int    `json:"sync_interval_min"`
	TokenCheckMin      int    `json:"token_check_min"`
	SyncWindow         int    `json:"sync_window"` // max messages listed per folder per pass
}

// Default configuration values
const (
	DefaultDatabasePath = "data/mailmirror.db"
	DefaultAPIPort      = "8080"
	DefaultLogLevel     = "INFO"
	DefaultDataDir      = "data"
	DefaultJWTSecret    = "mailmirror-default-secret-change-in-production"
	DefaultCORSOrigins  = "*"
	DefaultSyncInterval = 5
	DefaultTokenCheck   = 5
	DefaultSyncWindow   = 50
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:    DefaultDatabasePath,
		APIPort:         DefaultAPIPort,
		LogLevel:        DefaultLogLevel,
		DataDir:         DefaultDataDir,
		JWTSecret:       DefaultJWTSecret,
		CORSOrigins:     DefaultCORSOrigins,
		SyncIntervalMin: DefaultSyncInterval,
		TokenCheckMin:   DefaultTokenCheck,
		SyncWindow:      DefaultSyncWindow,
	}

	// Config file is optional
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	// Override with environment variables
	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	// Look for config file in current directory and data directory
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("MAILMIRROR_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("MAILMIRROR_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("MAILMIRROR_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("MAILMIRROR_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("MAILMIRROR_ATTACHMENTS_DIR"); val != "" {
		c.AttachmentsDir = val
	}
	if val := os.Getenv("MAILMIRROR_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("MAILMIRROR_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("MAILMIRROR_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("MAILMIRROR_GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("MAILMIRROR_GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("MAILMIRROR_GOOGLE_REDIRECT_URL"); val != "" {
		c.GoogleRedirectURL = val
	}
	if val := os.Getenv("MAILMIRROR_SYNC_INTERVAL_MIN"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncIntervalMin = n
		}
	}
	if val := os.Getenv("MAILMIRROR_TOKEN_CHECK_MIN"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.TokenCheckMin = n
		}
	}
	if val := os.Getenv("MAILMIRROR_SYNC_WINDOW"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SyncWindow = n
		}
	}
}

// GetAttachmentsBaseDir returns the base directory for attachment storage
// If AttachmentsDir is set, use it; otherwise use DataDir/attachments
func (c *Config) GetAttachmentsBaseDir() string {
	if c.AttachmentsDir != "" {
		return c.AttachmentsDir
	}
	return filepath.Join(c.DataDir, "attachments")
}

// GetEncryptionKey returns the 32-byte key used to encrypt stored OAuth
// tokens. An unset key is a configuration error, never silently derived.
func (c *Config) GetEncryptionKey() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, ErrNoEncryptionKey
	}
	// SHA-256 normalizes any passphrase to the 32 bytes AES-256 needs
	hash := sha256.Sum256([]byte(c.EncryptionKey))
	return hash[:], nil
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
