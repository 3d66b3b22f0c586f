package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clubsync/internal/domain/sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	defaultEnv            = EnvLocal
	defaultConfigDir      = ".clubsync"
	defaultDBFile         = "club.db"
	defaultAPIAddress     = "localhost:8080"
	defaultSyncInterval   = 300
	defaultRemoteTimeout  = 15
	defaultRetentionDays  = 30
	defaultStrictFKs      = true
	defaultAutoMigrate    = true
	defaultStrategyString = string(sync.LastWriteWins)
)

type Config struct {
	Env                string        `mapstructure:"app_env"`
	DeviceID           string        `mapstructure:"device_id"`
	ConfigDir          string        `mapstructure:"config_dir"`
	LocalDBPath        string        `mapstructure:"local_db_path"`
	RemoteDatabaseURI  string        `mapstructure:"remote_database_uri"`
	ConflictStrategy   sync.Strategy `mapstructure:"conflict_strategy"`
	SyncInterval       time.Duration `mapstructure:"-"`
	RemoteTimeout      time.Duration `mapstructure:"-"`
	StrictForeignKeys  bool          `mapstructure:"strict_foreign_keys"`
	AuditRetentionDays int           `mapstructure:"audit_retention_days"`
	APIAddress         string        `mapstructure:"api_address"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
	LogFile            string        `mapstructure:"log_file"`
}

// Load читает конфигурацию из .env, переменных окружения и необязательного
// YAML-файла configFile. Переменные окружения важнее файла.
func Load(configFile string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "device"
	}

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("DEVICE_ID", hostname)
	v.SetDefault("CONFIG_DIR", filepath.Join(homeDir, defaultConfigDir))
	v.SetDefault("CONFLICT_STRATEGY", defaultStrategyString)
	v.SetDefault("SYNC_INTERVAL_SECONDS", defaultSyncInterval)
	v.SetDefault("REMOTE_TIMEOUT_SECONDS", defaultRemoteTimeout)
	v.SetDefault("STRICT_FOREIGN_KEYS", defaultStrictFKs)
	v.SetDefault("AUDIT_RETENTION_DAYS", defaultRetentionDays)
	v.SetDefault("API_ADDRESS", defaultAPIAddress)
	v.SetDefault("AUTO_MIGRATE", defaultAutoMigrate)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	strategy, err := sync.ParseStrategy(v.GetString("CONFLICT_STRATEGY"))
	if err != nil {
		return nil, err
	}

	configDir := v.GetString("CONFIG_DIR")
	dbPath := v.GetString("LOCAL_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(configDir, defaultDBFile)
	}

	cfg := &Config{
		Env:                strings.ToLower(v.GetString("APP_ENV")),
		DeviceID:           v.GetString("DEVICE_ID"),
		ConfigDir:          configDir,
		LocalDBPath:        dbPath,
		RemoteDatabaseURI:  v.GetString("REMOTE_DATABASE_URI"),
		ConflictStrategy:   strategy,
		SyncInterval:       time.Duration(v.GetInt("SYNC_INTERVAL_SECONDS")) * time.Second,
		RemoteTimeout:      time.Duration(v.GetInt("REMOTE_TIMEOUT_SECONDS")) * time.Second,
		StrictForeignKeys:  v.GetBool("STRICT_FOREIGN_KEYS"),
		AuditRetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		APIAddress:         v.GetString("API_ADDRESS"),
		AutoMigrate:        v.GetBool("AUTO_MIGRATE"),
		LogFile:            v.GetString("LOG_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad как Load, но паникует при ошибке.
func MustLoad(configFile string) *Config {
	cfg, err := Load(configFile)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// loadDotEnv ищет .env в текущей и родительской директории.
func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Fprintf(os.Stderr, "Ошибка загрузки .env файла: %v\n", err)
			}
			return
		}
	}
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown app_env %q", c.Env)
	}
	if c.DeviceID == "" {
		return errors.New("device_id must not be empty")
	}
	if c.LocalDBPath == "" {
		return errors.New("local_db_path must not be empty")
	}
	if c.SyncInterval <= 0 {
		return errors.New("sync_interval_seconds must be positive")
	}
	if c.RemoteTimeout <= 0 {
		return errors.New("remote_timeout_seconds must be positive")
	}
	if c.AuditRetentionDays < 0 {
		return errors.New("audit_retention_days must not be negative")
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// HasRemote сообщает, настроено ли удалённое хранилище.
func (c *Config) HasRemote() bool {
	return c.RemoteDatabaseURI != ""
}
