package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Environment string         `yaml:"environment"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	Gateway     GatewayConfig  `yaml:"gateway"`
	Secrets     SecretsConfig  `yaml:"secrets"`
	Charge      ChargeConfig   `yaml:"charge"`
	Timeouts    TimeoutsConfig `yaml:"timeouts"`
	Logger      LoggerConfig   `yaml:"logger"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"` // takes precedence over the discrete fields
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds the identity lock backend. An empty Addr selects the in-process lock.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	LockExpiry time.Duration `yaml:"lock_expiry"`
}

// GatewayConfig holds the hosted-pay gateway component configuration
type GatewayConfig struct {
	BaseURL            string        `yaml:"base_url"`
	TerminalID         string        `yaml:"terminal_id"` // sent as EPI-Id
	RateLimit          float64       `yaml:"rate_limit"`  // charges per second
	RateBurst          int           `yaml:"rate_burst"`
	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
}

// SecretsConfig selects where gateway signing keys are read from
type SecretsConfig struct {
	Provider  string        `yaml:"provider"` // local, aws, vault, gcp
	LocalPath string        `yaml:"local_path"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	AWSEndpoint   string `yaml:"aws_endpoint"`
	AWSPathPrefix string `yaml:"aws_path_prefix"`

	VaultAddress    string `yaml:"vault_address"`
	VaultAuthMethod string `yaml:"vault_auth_method"`
	VaultToken      string `yaml:"vault_token"`
	VaultRoleID     string `yaml:"vault_role_id"`
	VaultSecretID   string `yaml:"vault_secret_id"`
	VaultMountPath  string `yaml:"vault_mount_path"`

	GCPProjectID string `yaml:"gcp_project_id"`
}

// ChargeConfig holds the charge policy
type ChargeConfig struct {
	MinimumAmount          decimal.Decimal `yaml:"minimum_amount"`
	RepeatWindow           time.Duration   `yaml:"repeat_window"`
	DefaultBatchNamePrefix string          `yaml:"default_batch_name_prefix"`
	DefaultTransactionType uuid.UUID       `yaml:"default_transaction_type"`
	DefaultSourceType      uuid.UUID       `yaml:"default_source_type"`
}

// TimeoutsConfig mirrors resilience.TimeoutConfig
type TimeoutsConfig struct {
	Attempt     time.Duration `yaml:"attempt"`
	Gateway     time.Duration `yaml:"gateway"`
	LockWait    time.Duration `yaml:"lock_wait"`
	Persistence time.Duration `yaml:"persistence"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// MetricsConfig holds the Prometheus endpoint address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when neither a file nor env vars say otherwise
func Default() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "automated_charge",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: RedisConfig{
			LockExpiry: 90 * time.Second,
		},
		Gateway: GatewayConfig{
			RateLimit:          20,
			RateBurst:          5,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Secrets: SecretsConfig{
			Provider:        "local",
			LocalPath:       "./secrets",
			CacheTTL:        5 * time.Minute,
			VaultAuthMethod: "token",
			VaultMountPath:  "secret",
		},
		Charge: ChargeConfig{
			MinimumAmount:          decimal.RequireFromString("1.00"),
			RepeatWindow:           5 * time.Minute,
			DefaultBatchNamePrefix: "Online Giving",
			DefaultTransactionType: domain.TransactionTypeContributionGUID,
			DefaultSourceType:      domain.SourceTypeWebsiteGUID,
		},
		Timeouts: TimeoutsConfig{
			Attempt:     60 * time.Second,
			Gateway:     30 * time.Second,
			LockWait:    10 * time.Second,
			Persistence: 20 * time.Second,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Load starts from Default, overlays the YAML file at path (when path is not empty)
// and finally applies environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) error {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	db := &cfg.Database
	db.URL = getEnv("DATABASE_URL", db.URL)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvAsInt("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Database = getEnv("DB_NAME", db.Database)
	db.SSLMode = getEnv("DB_SSL_MODE", db.SSLMode)
	db.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(db.MaxConns)))
	db.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(db.MinConns)))

	r := &cfg.Redis
	r.Addr = getEnv("REDIS_ADDR", r.Addr)
	r.Password = getEnv("REDIS_PASSWORD", r.Password)
	r.DB = getEnvAsInt("REDIS_DB", r.DB)
	r.LockExpiry = getEnvAsDuration("LOCK_EXPIRY", r.LockExpiry)

	g := &cfg.Gateway
	g.BaseURL = getEnv("GATEWAY_BASE_URL", g.BaseURL)
	g.TerminalID = getEnv("GATEWAY_TERMINAL_ID", g.TerminalID)
	g.RateLimit = getEnvAsFloat("GATEWAY_RATE_LIMIT", g.RateLimit)
	g.RateBurst = getEnvAsInt("GATEWAY_RATE_BURST", g.RateBurst)
	g.BreakerMaxFailures = getEnvAsInt("GATEWAY_BREAKER_MAX_FAILURES", g.BreakerMaxFailures)
	g.BreakerOpenTimeout = getEnvAsDuration("GATEWAY_BREAKER_OPEN_TIMEOUT", g.BreakerOpenTimeout)

	s := &cfg.Secrets
	s.Provider = getEnv("SECRETS_PROVIDER", s.Provider)
	s.LocalPath = getEnv("SECRETS_LOCAL_PATH", s.LocalPath)
	s.CacheTTL = getEnvAsDuration("SECRETS_CACHE_TTL", s.CacheTTL)
	s.AWSRegion = getEnv("AWS_REGION", s.AWSRegion)
	s.AWSProfile = getEnv("AWS_PROFILE", s.AWSProfile)
	s.AWSEndpoint = getEnv("AWS_SECRETS_ENDPOINT", s.AWSEndpoint)
	s.AWSPathPrefix = getEnv("AWS_SECRETS_PATH_PREFIX", s.AWSPathPrefix)
	s.VaultAddress = getEnv("VAULT_ADDR", s.VaultAddress)
	s.VaultAuthMethod = getEnv("VAULT_AUTH_METHOD", s.VaultAuthMethod)
	s.VaultToken = getEnv("VAULT_TOKEN", s.VaultToken)
	s.VaultRoleID = getEnv("VAULT_ROLE_ID", s.VaultRoleID)
	s.VaultSecretID = getEnv("VAULT_SECRET_ID", s.VaultSecretID)
	s.VaultMountPath = getEnv("VAULT_MOUNT_PATH", s.VaultMountPath)
	s.GCPProjectID = getEnv("GCP_PROJECT_ID", s.GCPProjectID)

	c := &cfg.Charge
	minimum, err := getEnvAsDecimal("CHARGE_MINIMUM_AMOUNT", c.MinimumAmount)
	if err != nil {
		return err
	}
	c.MinimumAmount = minimum
	c.RepeatWindow = getEnvAsDuration("CHARGE_REPEAT_WINDOW", c.RepeatWindow)
	c.DefaultBatchNamePrefix = getEnv("CHARGE_BATCH_NAME_PREFIX", c.DefaultBatchNamePrefix)
	if c.DefaultTransactionType, err = getEnvAsUUID("CHARGE_TRANSACTION_TYPE", c.DefaultTransactionType); err != nil {
		return err
	}
	if c.DefaultSourceType, err = getEnvAsUUID("CHARGE_SOURCE_TYPE", c.DefaultSourceType); err != nil {
		return err
	}

	t := &cfg.Timeouts
	t.Attempt = getEnvAsDuration("TIMEOUT_ATTEMPT", t.Attempt)
	t.Gateway = getEnvAsDuration("TIMEOUT_GATEWAY", t.Gateway)
	t.LockWait = getEnvAsDuration("TIMEOUT_LOCK_WAIT", t.LockWait)
	t.Persistence = getEnvAsDuration("TIMEOUT_PERSISTENCE", t.Persistence)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Development = getEnvAsBool("LOG_DEVELOPMENT", cfg.Logger.Development)
	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)
	return nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Gateway.BaseURL != "" && c.Gateway.TerminalID == "" {
		return fmt.Errorf("GATEWAY_TERMINAL_ID is required when GATEWAY_BASE_URL is set")
	}
	if c.Gateway.RateLimit <= 0 || c.Gateway.RateBurst <= 0 {
		return fmt.Errorf("gateway rate limit and burst must be positive")
	}

	switch c.Secrets.Provider {
	case "local":
	case "aws":
		if c.Secrets.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required for the aws secrets provider")
		}
	case "vault":
		if c.Secrets.VaultAddress == "" {
			return fmt.Errorf("VAULT_ADDR is required for the vault secrets provider")
		}
	case "gcp":
		if c.Secrets.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the gcp secrets provider")
		}
	default:
		return fmt.Errorf("unknown secrets provider %q", c.Secrets.Provider)
	}

	if !c.Charge.MinimumAmount.IsPositive() {
		return fmt.Errorf("charge minimum amount must be greater than zero")
	}
	if c.Charge.RepeatWindow <= 0 {
		return fmt.Errorf("charge repeat window must be positive")
	}
	if strings.TrimSpace(c.Charge.DefaultBatchNamePrefix) == "" {
		return fmt.Errorf("charge default batch name prefix is required")
	}

	for name, d := range map[string]time.Duration{
		"attempt":     c.Timeouts.Attempt,
		"gateway":     c.Timeouts.Gateway,
		"lock_wait":   c.Timeouts.LockWait,
		"persistence": c.Timeouts.Persistence,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive", name)
		}
	}
	if c.Timeouts.Gateway >= c.Timeouts.Attempt {
		return fmt.Errorf("gateway timeout must be shorter than the attempt timeout")
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsProduction reports ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Money and identifiers fail loudly instead of silently falling back

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid amount %q: %w", key, valueStr, err)
	}
	return value, nil
}

func getEnvAsUUID(key string, defaultValue uuid.UUID) (uuid.UUID, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := uuid.Parse(valueStr)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: invalid guid %q: %w", key, valueStr, err)
	}
	return value, nil
}
