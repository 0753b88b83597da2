package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

const testSecret = "a-very-long-test-secret-of-32-bytes!"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FORUM_STORAGE", "")
	t.Setenv("FORUM_JWT_SECRET", testSecret)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []byte(testSecret), cfg.SigningKey())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", strings.Join([]string{
		"port: \"9090\"",
		"storage: sqlite",
		"sqlite_path: /tmp/forum.db",
		"token_ttl: 30m",
		"bcrypt_cost: 4",
		"jwt_secret: " + testSecret,
	}, "\n"))
	t.Setenv("PORT", "")
	t.Setenv("FORUM_STORAGE", "")
	t.Setenv("FORUM_JWT_SECRET", "")
	// Окружение перекрывает YAML
	t.Setenv("FORUM_TOKEN_TTL", "2h")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "/tmp/forum.db", cfg.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestLoad_DotEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "FORUM_JWT_SECRET="+testSecret+"\nFORUM_SEED=true\n")
	t.Setenv("PORT", "")
	t.Setenv("FORUM_STORAGE", "")
	t.Setenv("FORUM_SEED", "")
	t.Setenv("FORUM_JWT_SECRET", "")
	// godotenv не перезаписывает уже заданные переменные, поэтому убираем их полностью
	require.NoError(t, os.Unsetenv("FORUM_JWT_SECRET"))
	require.NoError(t, os.Unsetenv("FORUM_SEED"))
	t.Cleanup(func() {
		_ = os.Unsetenv("FORUM_JWT_SECRET")
		_ = os.Unsetenv("FORUM_SEED")
	})

	cfg, err := Load("", dotenv)
	require.NoError(t, err)
	assert.True(t, cfg.Seed)
	assert.Equal(t, []byte(testSecret), cfg.SigningKey())
}

func TestLoad_MissingDotEnvIsNotAnError(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FORUM_STORAGE", "")
	t.Setenv("FORUM_JWT_SECRET", testSecret)

	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FORUM_STORAGE", "")
	t.Setenv("FORUM_JWT_SECRET", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "port: [unclosed"), "")
	assert.Error(t, err)

	_, err = Load("", "")
	assert.ErrorContains(t, err, "FORUM_JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.JWTSecret = testSecret
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "mongo" }, want: "unknown storage"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage = StoragePostgres }, want: "DATABASE_URL"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage, c.SQLitePath = StorageSQLite, "" }, want: "FORUM_SQLITE_PATH"},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, want: "FORUM_JWT_SECRET"},
		{name: "bad base64 secret", mutate: func(c *Config) { c.JWTSecret = "base64:%%%" }, want: "FORUM_JWT_SECRET"},
		{name: "tiny token ttl", mutate: func(c *Config) { c.TokenTTL = time.Millisecond }, want: "FORUM_TOKEN_TTL"},
		{name: "bcrypt cost", mutate: func(c *Config) { c.BcryptCost = 1 }, want: "FORUM_BCRYPT_COST"},
		{name: "db log level", mutate: func(c *Config) { c.DBLogLevel = "loud" }, want: "db log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSigningKey_Base64(t *testing.T) {
	raw := []byte(strings.Repeat("k", 32))
	cfg := Config{JWTSecret: "base64:" + base64.StdEncoding.EncodeToString(raw)}
	assert.Equal(t, raw, cfg.SigningKey())

	// Строка, похожая на base64, без префикса берется как есть
	hexLike := "0123456789abcdef0123456789abcdef"
	cfg = Config{JWTSecret: hexLike}
	assert.Equal(t, []byte(hexLike), cfg.SigningKey())
}

func TestGormLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"silent": logger.Silent,
		"ERROR":  logger.Error,
		"":       logger.Warn,
		"info":   logger.Info,
	} {
		got, err := Config{DBLogLevel: in}.GormLogLevel()
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
