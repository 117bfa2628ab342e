package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Directory DirectoryConfig `yaml:"directory"`
	NATS      NATSConfig      `yaml:"nats"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BodyLimitBytes int64         `yaml:"body_limit_bytes"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// StorageConfig locates evidence blobs.
type StorageConfig struct {
	EvidenceDir string `yaml:"evidence_dir"`
}

// DirectoryConfig selects where branches and products are read from.
type DirectoryConfig struct {
	Mode     string        `yaml:"mode"` // sql | http
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NATSConfig holds event publishing settings. An empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AIConfig holds settings for the receive-note assistant. An empty key
// disables it.
type AIConfig struct {
	OpenAIKey string `yaml:"openai_key"`
	Model     string `yaml:"model"`
}

// SchedulerConfig holds background job schedules.
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	OrphanSweepSpec string        `yaml:"orphan_sweep_spec"`
	OrphanMinAge    time.Duration `yaml:"orphan_min_age"`
	DigestSpec      string        `yaml:"digest_spec"`
	Timezone        string        `yaml:"timezone"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
	ServiceName string `yaml:"service_name"`
	Version     string `yaml:"version"`
}

// Defaults returns the configuration used when nothing overrides a field.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:4200"},
			RequestTimeout: 30 * time.Second,
			BodyLimitBytes: 1 << 20,
		},
		Database: DatabaseConfig{MaxConns: 10, MinConns: 1},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Storage:  StorageConfig{EvidenceDir: "./uploads/evidence"},
		Directory: DirectoryConfig{
			Mode:     "sql",
			Timeout:  10 * time.Second,
			CacheTTL: time.Minute,
		},
		NATS: NATSConfig{SubjectPrefix: "purchase_orders"},
		AI:   AIConfig{Model: "gpt-4o-mini"},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			OrphanSweepSpec: "0 3 * * *",
			OrphanMinAge:    24 * time.Hour,
			DigestSpec:      "0 8 * * 1-5",
			Timezone:        "UTC",
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "development",
			ServiceName: "branch-supply",
			Version:     "dev",
		},
	}
}

// Load reads the optional YAML file, then environment variables (optionally
// from the provided env file), and materializes a Config. Environment values
// win over the YAML file.
func Load(envFile, yamlFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := Defaults()
	if yamlFile == "" {
		yamlFile = os.Getenv("CONFIG_FILE")
	}
	if yamlFile != "" {
		if err := loadYAML(yamlFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "SERVER_PORT")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Storage.EvidenceDir, "EVIDENCE_DIR")
	setString(&cfg.Directory.Mode, "DIRECTORY_MODE")
	setString(&cfg.Directory.BaseURL, "DIRECTORY_BASE_URL")
	setString(&cfg.Directory.APIToken, "DIRECTORY_API_TOKEN")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "NATS_SUBJECT_PREFIX")
	setString(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.Model, "OPENAI_MODEL")
	setString(&cfg.Scheduler.OrphanSweepSpec, "ORPHAN_SWEEP_CRON")
	setString(&cfg.Scheduler.DigestSpec, "DIGEST_CRON")
	setString(&cfg.Scheduler.Timezone, "TIMEZONE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Environment, "ENVIRONMENT")
	setString(&cfg.Log.ServiceName, "SERVICE_NAME")
	setString(&cfg.Log.Version, "SERVICE_VERSION")

	var errs []error
	errs = append(errs,
		setDuration(&cfg.Server.RequestTimeout, "REQUEST_TIMEOUT"),
		setDuration(&cfg.Auth.TokenTTL, "TOKEN_TTL"),
		setDuration(&cfg.Directory.Timeout, "DIRECTORY_TIMEOUT"),
		setDuration(&cfg.Directory.CacheTTL, "DIRECTORY_CACHE_TTL"),
		setDuration(&cfg.Scheduler.OrphanMinAge, "ORPHAN_MIN_AGE"),
		setBool(&cfg.Auth.SecureCookie, "SECURE_COOKIE"),
		setBool(&cfg.Scheduler.Enabled, "SCHEDULER_ENABLED"),
	)
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_MAX_CONNS: %w", err))
		} else {
			cfg.Database.MaxConns = int32(n)
		}
	}
	if v := os.Getenv("BODY_LIMIT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BODY_LIMIT_BYTES: %w", err))
		} else {
			cfg.Server.BodyLimitBytes = n
		}
	}
	return errors.Join(errs...)
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	switch c.Directory.Mode {
	case "sql":
	case "http":
		if c.Directory.BaseURL == "" {
			return errors.New("DIRECTORY_BASE_URL must be provided when DIRECTORY_MODE=http")
		}
	default:
		return fmt.Errorf("DIRECTORY_MODE must be sql or http, got %q", c.Directory.Mode)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
