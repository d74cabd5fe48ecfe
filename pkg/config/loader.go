package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadYAML decodes base.yaml and then <env>.yaml from configDir into out. Fields set by
// the env file override the base; missing files are skipped.
func LoadYAML(configDir, env string, out any) error {
	if configDir == "" {
		configDir = "config"
	}

	files := []string{filepath.Join(configDir, "base.yaml")}
	if env != "" && env != "base" {
		files = append(files, filepath.Join(configDir, env+".yaml"))
	}

	for _, path := range files {
		if err := decodeFile(path, out); err != nil {
			return err
		}
	}
	return nil
}

func decodeFile(path string, out any) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// LoadSecrets loads configDir/secrets.env into the process environment without
// overriding variables that are already set.
func LoadSecrets(configDir string) error {
	if configDir == "" {
		configDir = "config"
	}
	path := filepath.Join(configDir, "secrets.env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load secrets.env: %w", err)
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
