package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Name   string       `yaml:"name"`
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadYAML_EnvOverridesBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "name: base\nserver:\n  port: \":8080\"\n  shutdown_timeout: 10s\nredis:\n  addr: localhost:6379\n")
	writeFile(t, dir, "production.yaml", "name: prod\nredis:\n  addr: redis:6379\n")

	var cfg sample
	require.NoError(t, LoadYAML(dir, "production", &cfg))

	assert.Equal(t, "prod", cfg.Name)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadYAML_MissingFilesAreSkipped(t *testing.T) {
	var cfg sample
	require.NoError(t, LoadYAML(t.TempDir(), "local", &cfg))
	assert.Equal(t, "", cfg.Name)
}

func TestLoadYAML_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server: [unclosed\n")

	var cfg sample
	assert.Error(t, LoadYAML(dir, "", &cfg))
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "secrets.env", "RFQGW_TEST_SECRET=\"from-file\"\n")
	t.Setenv("RFQGW_TEST_SECRET", "")
	os.Unsetenv("RFQGW_TEST_SECRET")

	require.NoError(t, LoadSecrets(dir))
	assert.Equal(t, "from-file", os.Getenv("RFQGW_TEST_SECRET"))

	require.NoError(t, LoadSecrets(t.TempDir()))
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("LOG_LEVEL", "debug")

	var (
		srv ServerConfig
		rd  RedisConfig
		db  DBConfig
		lg  LogConfig
	)
	OverrideServerFromEnv(&srv)
	OverrideRedisFromEnv(&rd)
	OverrideDBFromEnv(&db)
	OverrideLogFromEnv(&lg)

	assert.Equal(t, ":9090", srv.Port)
	assert.Equal(t, "cache:6379", rd.Addr)
	assert.Equal(t, 3, rd.DB)
	assert.Equal(t, "postgres://x", db.URL)
	assert.Equal(t, "debug", lg.Level)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.com", "http://localhost:5173"}, SplitList(" https://a.com , ,http://localhost:5173"))
	assert.Nil(t, SplitList(""))
}
