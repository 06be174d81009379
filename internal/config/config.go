package config

import (
	"os"
	"strconv"
)

// Search backends
const (
	SearchBackendPostgres = "postgres"
	SearchBackendBleve    = "bleve"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	TablePrefix string

	// Auth
	JWKSURL   string // Empty disables JWT verification (dev only)
	DevUserID string // Identity attributed to requests when JWT verification is disabled

	// Search
	SearchBackend    string // postgres | bleve
	BleveIndexPath   string // Empty keeps the bleve index in memory
	SearchConfigFile string // Optional override of the embedded search settings

	// Attachments
	AttachmentsBucket string // Empty disables attachment cleanup
	AttachmentsPrefix string
	AWSRegion         string
	S3Endpoint        string // Custom endpoint for S3-compatible stores
	S3AccessKey       string // Static credentials; empty uses the default AWS chain
	S3SecretKey       string

	// Logging
	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		JWKSURL:   getEnv("AUTH_JWKS_URL", ""),
		DevUserID: getEnv("DEV_USER_ID", "dev-user"),

		SearchBackend:    getEnv("SEARCH_BACKEND", SearchBackendPostgres),
		BleveIndexPath:   getEnv("BLEVE_INDEX_PATH", ""),
		SearchConfigFile: getEnv("SEARCH_CONFIG_FILE", ""),

		AttachmentsBucket: getEnv("ATTACHMENTS_BUCKET", ""),
		AttachmentsPrefix: getEnv("ATTACHMENTS_PREFIX", "attachments"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:       getEnv("S3_SECRET_KEY", ""),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
