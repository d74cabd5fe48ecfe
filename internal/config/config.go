package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"rfqgateway/pkg/config"
)

type SupabaseConfig struct {
	URL            string        `yaml:"url"`
	AnonKey        string        `yaml:"anon_key"`
	ServiceRoleKey string        `yaml:"service_role_key"`
	JWTSecret      string        `yaml:"jwt_secret"`
	Timeout        time.Duration `yaml:"timeout"`
}

// AdminConfig holds the static admin bearer. BearerHash (bcrypt) takes precedence.
type AdminConfig struct {
	Bearer     string `yaml:"bearer"`
	BearerHash string `yaml:"bearer_hash"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AppConfig struct {
	ServiceName string `yaml:"service_name"`
	CallbackURL string `yaml:"callback_url"`
}

type AuthConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type CompanyConfig struct {
	InviteTTL     time.Duration `yaml:"invite_ttl"`
	AcceptLockTTL time.Duration `yaml:"accept_lock_ttl"`
}

type RFQConfig struct {
	CardView string `yaml:"card_view"`
}

type Config struct {
	Server   config.ServerConfig `yaml:"server"`
	Log      config.LogConfig    `yaml:"log"`
	Redis    config.RedisConfig  `yaml:"redis"`
	DB       config.DBConfig     `yaml:"database"`
	Supabase SupabaseConfig      `yaml:"supabase"`
	Admin    AdminConfig         `yaml:"admin"`
	CORS     CORSConfig          `yaml:"cors"`
	App      AppConfig           `yaml:"app"`
	Auth     AuthConfig          `yaml:"auth"`
	Company  CompanyConfig       `yaml:"company"`
	RFQ      RFQConfig           `yaml:"rfq"`
}

func defaults() *Config {
	return &Config{
		Server:   config.ServerConfig{Port: ":8787", ShutdownTimeout: 10 * time.Second},
		Log:      config.LogConfig{Level: "info"},
		Supabase: SupabaseConfig{Timeout: 10 * time.Second},
		App:      AppConfig{ServiceName: "rfq-gateway"},
		Auth:     AuthConfig{CacheTTL: 60 * time.Second},
		Company:  CompanyConfig{InviteTTL: 7 * 24 * time.Hour, AcceptLockTTL: 30 * time.Second},
		RFQ:      RFQConfig{CardView: "v_rfqs_card"},
	}
}

// Load reads config/ for the current CONFIG_ENV.
func Load() (*Config, error) {
	return LoadFrom(config.GetEnv("CONFIG_DIR", "config"), config.GetConfigEnv())
}

// LoadFrom applies, in order: defaults, base.yaml, <env>.yaml, secrets.env and the
// process environment.
func LoadFrom(dir, env string) (*Config, error) {
	cfg := defaults()

	if err := config.LoadYAML(dir, env, cfg); err != nil {
		return nil, err
	}
	if err := config.LoadSecrets(dir); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideLogFromEnv(&cfg.Log)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideDBFromEnv(&cfg.DB)
	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	setIfPresent("SUPABASE_URL", &cfg.Supabase.URL)
	setIfPresent("SUPABASE_ANON_KEY", &cfg.Supabase.AnonKey)
	setIfPresent("SUPABASE_SERVICE_ROLE_KEY", &cfg.Supabase.ServiceRoleKey)
	setIfPresent("SUPABASE_JWT_SECRET", &cfg.Supabase.JWTSecret)
	setIfPresent("ADMIN_BEARER", &cfg.Admin.Bearer)
	setIfPresent("ADMIN_BEARER_HASH", &cfg.Admin.BearerHash)
	setIfPresent("APP_CALLBACK_URL", &cfg.App.CallbackURL)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = config.SplitList(origins)
	}
}

func setIfPresent(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("supabase.url is required"))
	}
	// enrichment, company writes and the hydrate RPC all authenticate with the service key
	if c.Supabase.ServiceRoleKey == "" {
		errs = append(errs, errors.New("supabase.service_role_key is required"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
