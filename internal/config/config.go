package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Lock    LockConfig    `yaml:"lock"`
	Admin   AdminConfig   `yaml:"admin"`
	Audit   AuditConfig   `yaml:"audit"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	// DataDir is the root data directory; department documents live in
	// DataDir/departments and the lock snapshot in DataDir/config.
	DataDir        string `yaml:"data_dir"`
	EnableBackups  bool   `yaml:"enable_backups"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type LockConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes"`
	SweepSeconds   int `yaml:"sweep_seconds"`
}

type AdminConfig struct {
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
}

type AuditConfig struct {
	DBPath string `yaml:"db_path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Storage: StorageConfig{
			DataDir:        "data",
			EnableBackups:  true,
			MaxUploadBytes: 2_000_000,
		},
		Lock: LockConfig{
			TimeoutMinutes: 60,
			SweepSeconds:   60,
		},
		Admin: AdminConfig{
			User:            "admin",
			Password:        "admin123",
			SessionTTLHours: 8,
		},
		Audit: AuditConfig{
			DBPath: "data/audit.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path := os.Getenv("GANTT_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("GANTT_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("GANTT_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GANTT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dataDir := os.Getenv("GANTT_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if v := os.Getenv("GANTT_ENABLE_BACKUPS"); v != "" {
		cfg.Storage.EnableBackups = parseBool(v)
	}
	if v := os.Getenv("GANTT_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GANTT_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.Storage.MaxUploadBytes = n
	}
	if v := os.Getenv("GANTT_LOCK_TIMEOUT_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GANTT_LOCK_TIMEOUT_MINUTES: %w", err)
		}
		cfg.Lock.TimeoutMinutes = n
	}
	if v := os.Getenv("GANTT_LOCK_SWEEP_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GANTT_LOCK_SWEEP_SECONDS: %w", err)
		}
		cfg.Lock.SweepSeconds = n
	}
	if user := os.Getenv("GANTT_ADMIN_USER"); user != "" {
		cfg.Admin.User = user
	}
	if pass := os.Getenv("GANTT_ADMIN_PASSWORD"); pass != "" {
		cfg.Admin.Password = pass
	}
	if v := os.Getenv("GANTT_ADMIN_TTL_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GANTT_ADMIN_TTL_HOURS: %w", err)
		}
		cfg.Admin.SessionTTLHours = n
	}
	if dbPath := os.Getenv("GANTT_AUDIT_DB_PATH"); dbPath != "" {
		cfg.Audit.DBPath = dbPath
	}
	if level := os.Getenv("GANTT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func parseBool(value string) bool {
	switch value {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
