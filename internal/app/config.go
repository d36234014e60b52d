package app

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config configures the signer client.
type Config struct {
	APIURL        string        // Backend base URL (default: http://localhost:8080)
	StorageFile   string        // SQLite file holding the token pair (default: <user config dir>/countersign/storage.db)
	MasterKey     string        // Optional: key material for encrypting stored tokens
	MasterKeyPath string        // Optional: file holding the key material; wins over MasterKey
	HTTPTimeout   time.Duration // Per-request timeout (default: 10s)
	SyncInterval  time.Duration // Minimum time between field syncs; 0 syncs every edit (default: 500ms)
	RefreshLeeway time.Duration // Refresh access tokens this long before exp (default: 0)
	Env           string        // Environment (dev, staging, prod) (default: dev)
	LogLevel      string        // Log level (debug, info, warn, error) (default: info)
	LogFormat     string        // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		APIURL:        getEnvOrDefault("COUNTERSIGN_API_URL", "http://localhost:8080"),
		StorageFile:   getEnvOrDefault("COUNTERSIGN_STORAGE_FILE", defaultStorageFile()),
		MasterKey:     os.Getenv("COUNTERSIGN_MASTER_KEY"),
		MasterKeyPath: os.Getenv("COUNTERSIGN_MASTER_KEY_PATH"),
		HTTPTimeout:   getEnvDurationOrDefault("COUNTERSIGN_HTTP_TIMEOUT", 10*time.Second),
		SyncInterval:  getEnvDurationOrDefault("COUNTERSIGN_SYNC_INTERVAL", 500*time.Millisecond),
		RefreshLeeway: getEnvDurationOrDefault("COUNTERSIGN_REFRESH_LEEWAY", 0),
		Env:           getEnvOrDefault("ENV", "dev"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func defaultStorageFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "countersign.db"
	}
	return filepath.Join(dir, "countersign", "storage.db")
}

// ServerConfig configures the fake backend.
type ServerConfig struct {
	Secret               string        // HS256 secret for access tokens (required, min 16 bytes)
	AccessTTL            time.Duration // Access token lifetime (default: 5m)
	RotateRefresh        bool          // Issue a new refresh token on every refresh (default: false)
	SeedEmail            string        // Optional: create a demo account, contract and signer
	SeedPassword         string        // Password for the demo account (default: password123)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired refresh token sweep interval (default: 1h)
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Secret:               os.Getenv("FAKEAPI_SECRET"),
		AccessTTL:            getEnvDurationOrDefault("FAKEAPI_ACCESS_TTL", 5*time.Minute),
		RotateRefresh:        getEnvBoolOrDefault("FAKEAPI_ROTATE_REFRESH", false),
		SeedEmail:            os.Getenv("FAKEAPI_SEED_EMAIL"),
		SeedPassword:         getEnvOrDefault("FAKEAPI_SEED_PASSWORD", "password123"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are milliseconds
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return defaultValue
}
