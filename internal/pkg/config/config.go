package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	AppName   string          `yaml:"app_name"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`   // Where database handles are stored
	Transport TransportConfig `yaml:"transport"` // How commands reach remote hosts
	Restart   RestartConfig   `yaml:"restart"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Logs      LogsConfig      `yaml:"logs"`
	API       API             `yaml:"api"`
}

// ServerConfig holds HTTP server related configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	ReadTimeout    int    `yaml:"read_timeout"`
	WriteTimeout   int    `yaml:"write_timeout"`
	IdleTimeout    int    `yaml:"idle_timeout"`
	MaxHeaderBytes int    `yaml:"max_header_bytes"`
}

// CatalogConfig holds the connection to the control-plane database that
// stores managed database records, servers and team ownership
type CatalogConfig struct {
	Driver          string `yaml:"driver"` // mysql or pgx
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// TransportConfig holds remote execution settings
type TransportConfig struct {
	SSHUser        string   `yaml:"ssh_user"`
	SSHKeyPath     string   `yaml:"ssh_key_path"`
	KnownHostsPath string   `yaml:"known_hosts_path"`
	ConnectTimeout int      `yaml:"connect_timeout"` // seconds
	LocalHosts     []string `yaml:"local_hosts"`     // Hosts served by the local shell instead of SSH
	Shell          string   `yaml:"shell"`

	// InsecureIgnoreHostKey skips host key verification when no known_hosts file is set
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`
}

// RestartConfig selects how container restarts are requested
type RestartConfig struct {
	Mode    string `yaml:"mode"` // transport or nats
	NatsURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// GatewayConfig holds request bounds enforced by the administration gateway
type GatewayConfig struct {
	MaxQueryLength   int `yaml:"max_query_length"`
	MaxLogEntries    int `yaml:"max_log_entries"`
	KeyListLimit     int `yaml:"key_list_limit"`
	QueryLogLimit    int `yaml:"query_log_limit"`
	StreamInterval   int `yaml:"stream_interval"` // seconds between live metrics pushes
	PasswordLength   int `yaml:"password_length"`
	RestartTimeout   int `yaml:"restart_timeout"` // seconds allowed for a background restart
	MaxStreamClients int `yaml:"max_stream_clients"`
}

// LogsConfig holds logging configuration
type LogsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
	Format   string `yaml:"format"`
	Stdout   bool   `yaml:"stdout"`

	// Rotation of the file sink
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// LoadConfig loads the configuration from the specified file path.
// Values missing from the file keep their defaults and environment overrides are applied last.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path
func SaveConfig(cfg *Config, filePath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(filePath, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can be used
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case "mysql", "pgx":
	default:
		return fmt.Errorf("catalog.driver must be mysql or pgx, got %q", c.Catalog.Driver)
	}

	switch c.Restart.Mode {
	case "transport":
	case "nats":
		if c.Restart.NatsURL == "" {
			return fmt.Errorf("restart.nats_url is required when restart.mode is nats")
		}
	default:
		return fmt.Errorf("restart.mode must be transport or nats, got %q", c.Restart.Mode)
	}

	if c.API.Auth.Enabled && c.API.Auth.JWTSecret == "" {
		return fmt.Errorf("api.auth.jwt_secret is required when auth is enabled")
	}
	if !c.API.Auth.Enabled && c.API.Auth.Static.TeamID <= 0 {
		return fmt.Errorf("api.auth.static.team_id is required when auth is disabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	return nil
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{
		AppName: "DBAdminDO",
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
		},
		Catalog: CatalogConfig{
			Driver:          "mysql",
			DSN:             "dbadmin:dbadmin@tcp(localhost:3306)/dbadmin?parseTime=true",
			MaxOpenConns:    10,
			ConnMaxLifetime: 300,
		},
		Transport: TransportConfig{
			SSHUser:        "root",
			ConnectTimeout: 10,
			LocalHosts:     []string{"localhost", "127.0.0.1", "host.docker.internal"},
			Shell:          "bash",
		},
		Restart: RestartConfig{
			Mode:    "transport",
			NatsURL: "nats://localhost:4222",
			Subject: "databases.restart",
		},
		Gateway: GatewayConfig{
			MaxQueryLength:   10000,
			MaxLogEntries:    100,
			KeyListLimit:     500,
			QueryLogLimit:    100,
			StreamInterval:   5,
			PasswordLength:   32,
			RestartTimeout:   120,
			MaxStreamClients: 50,
		},
		Logs: LogsConfig{
			Enabled:    true,
			Level:      "info",
			FilePath:   "logs",
			Format:     "json",
			Stdout:     true,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
	cfg.API.CORS.Enabled = true
	cfg.API.CORS.AllowedOrigins = []string{"*"}
	cfg.API.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.API.Auth.Enabled = true
	cfg.API.Auth.JWTExpiration = 86400
	cfg.API.Auth.Static.Username = "operator"
	cfg.API.Auth.Static.Role = "viewer"
	return cfg
}
