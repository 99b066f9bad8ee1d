package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found next to the config or in the working directory.
// A missing file is not an error.
func LoadDotEnv(paths ...string) string {
	candidates := append(paths, ".env", "/etc/dbadmin/.env")
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyEnv overrides secrets and endpoints from the environment
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("DBADMIN_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}
	if v := os.Getenv("DBADMIN_CATALOG_DRIVER"); v != "" {
		cfg.Catalog.Driver = v
	}
	if v := os.Getenv("DBADMIN_CATALOG_DSN"); v != "" {
		cfg.Catalog.DSN = v
	}
	if v := os.Getenv("DBADMIN_NATS_URL"); v != "" {
		cfg.Restart.NatsURL = v
	}
	if v := os.Getenv("DBADMIN_SSH_KEY"); v != "" {
		cfg.Transport.SSHKeyPath = v
	}
	if v := os.Getenv("DBADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DBADMIN_LOG_LEVEL"); v != "" {
		cfg.Logs.Level = v
	}
}
