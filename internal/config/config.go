package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	minSecretBytes = 32
	base64Prefix   = "base64:"
)

// Config - настройки процесса. Источники по возрастанию приоритета:
// значения по умолчанию, YAML-файл, переменные окружения (в том числе из .env).
type Config struct {
	Port    string `yaml:"port" env:"PORT"`
	Storage string `yaml:"storage" env:"FORUM_STORAGE"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	DBLogLevel  string `yaml:"db_log_level" env:"FORUM_DB_LOG_LEVEL"`
	SQLitePath  string `yaml:"sqlite_path" env:"FORUM_SQLITE_PATH"`

	RedisAddr     string        `yaml:"redis_addr" env:"FORUM_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"FORUM_REDIS_PASSWORD"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"FORUM_CACHE_TTL"`

	JWTSecret  string        `yaml:"jwt_secret" env:"FORUM_JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"FORUM_TOKEN_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"FORUM_BCRYPT_COST"`

	// Seed заполняет in-memory хранилище демо-данными
	Seed bool `yaml:"seed" env:"FORUM_SEED"`
}

// Default возвращает настройки по умолчанию.
func Default() Config {
	return Config{
		Port:       "8080",
		Storage:    StorageInMemory,
		DBLogLevel: "warn",
		SQLitePath: "./data/forum.db",
		CacheTTL:   5 * time.Minute,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Load собирает конфигурацию. path - необязательный YAML-файл, dotenv - необязательный .env;
// отсутствие .env не ошибка.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageInMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage)
	}
	if c.Storage == StorageSQLite && c.SQLitePath == "" {
		return errors.New("FORUM_SQLITE_PATH must be set for sqlite storage")
	}
	if len(c.SigningKey()) < minSecretBytes {
		return fmt.Errorf("FORUM_JWT_SECRET must be at least %d bytes", minSecretBytes)
	}
	if c.TokenTTL < time.Second {
		return errors.New("FORUM_TOKEN_TTL must be at least 1s")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("FORUM_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := c.GormLogLevel(); err != nil {
		return err
	}
	return nil
}

// SigningKey возвращает секрет подписи. Значение вида "base64:<...>" декодируется,
// остальные берутся как есть. Битый base64 дает nil, и Validate его отклонит.
func (c Config) SigningKey() []byte {
	secret := strings.TrimSpace(c.JWTSecret)
	if encoded, ok := strings.CutPrefix(secret, base64Prefix); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil
		}
		return decoded
	}
	return []byte(secret)
}

// GormLogLevel переводит DBLogLevel в уровень логгера gorm.
func (c Config) GormLogLevel() (logger.LogLevel, error) {
	switch strings.ToLower(c.DBLogLevel) {
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "warn", "":
		return logger.Warn, nil
	case "info":
		return logger.Info, nil
	default:
		return 0, fmt.Errorf("unknown db log level %q", c.DBLogLevel)
	}
}
