package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dukerupert/supplylist/internal/backup"
)

// Config holds the server configuration read from SUPPLY_* environment variables.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// Off-device backup; disabled unless bucket and keys are all set.
	Backup S3Config
	// Backup and restore requests allowed per client per minute.
	BackupRateLimit int
	// TrustProxy keys the rate limiter on X-Forwarded-For.
	TrustProxy bool
}

type S3Config = backup.S3Config

// FromEnv builds a Config from the environment, applying defaults for unset
// variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getenv("SUPPLY_PORT", "8080"),
		DBPath:    getenv("SUPPLY_DB_PATH", "supplylist.db"),
		LogLevel:  getenv("SUPPLY_LOG_LEVEL", "info"),
		LogFormat: getenv("SUPPLY_LOG_FORMAT", "text"),
		Backup: S3Config{
			Endpoint:  os.Getenv("SUPPLY_BACKUP_S3_ENDPOINT"),
			Bucket:    os.Getenv("SUPPLY_BACKUP_S3_BUCKET"),
			Region:    getenv("SUPPLY_BACKUP_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("SUPPLY_BACKUP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SUPPLY_BACKUP_S3_SECRET_KEY"),
		},
		BackupRateLimit: 5,
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("SUPPLY_PORT %q is not a valid port", cfg.Port)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("SUPPLY_LOG_FORMAT %q must be text or json", cfg.LogFormat)
	}

	if v := os.Getenv("SUPPLY_BACKUP_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SUPPLY_BACKUP_RATE_LIMIT %q must be a positive integer", v)
		}
		cfg.BackupRateLimit = n
	}

	if v := os.Getenv("SUPPLY_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SUPPLY_TRUST_PROXY %q must be true or false", v)
		}
		cfg.TrustProxy = trust
	}

	b := cfg.Backup
	set := 0
	for _, v := range []string{b.Bucket, b.AccessKey, b.SecretKey} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return nil, fmt.Errorf("SUPPLY_BACKUP_S3_BUCKET, SUPPLY_BACKUP_S3_ACCESS_KEY and SUPPLY_BACKUP_S3_SECRET_KEY must be set together")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
