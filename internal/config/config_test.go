package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "1.00", cfg.Charge.MinimumAmount.StringFixed(2))
	assert.Equal(t, 5*time.Minute, cfg.Charge.RepeatWindow)
	assert.Equal(t, "Online Giving", cfg.Charge.DefaultBatchNamePrefix)
	assert.Equal(t, domain.TransactionTypeContributionGUID, cfg.Charge.DefaultTransactionType)
	assert.Equal(t, "local", cfg.Secrets.Provider)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=automated_charge sslmode=disable",
		cfg.Database.ConnectionString())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
database:
  host: db.internal
  password: from-file
charge:
  minimum_amount: 5.00
  repeat_window: 10m
  default_batch_name_prefix: Recurring Giving
  default_source_type: 11111111-2222-3333-4444-555555555555
gateway:
  base_url: https://pay.example.com
  terminal_id: 7000-700010-1-1
timeouts:
  gateway: 15s
`), 0o600))

	t.Setenv("DB_HOST", "db.override")
	t.Setenv("CHARGE_REPEAT_WINDOW", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "db.override", cfg.Database.Host, "env wins over the file")
	assert.Equal(t, "from-file", cfg.Database.Password)
	assert.Equal(t, "5.00", cfg.Charge.MinimumAmount.StringFixed(2))
	assert.Equal(t, 2*time.Minute, cfg.Charge.RepeatWindow)
	assert.Equal(t, "Recurring Giving", cfg.Charge.DefaultBatchNamePrefix)
	assert.Equal(t, uuid.MustParse("11111111-2222-3333-4444-555555555555"), cfg.Charge.DefaultSourceType)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Gateway)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Attempt, "unset keys keep their defaults")
}

func TestLoad_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://charger@db:5432/charges?sslmode=require")

	cfg, err := Load("")
	require.NoError(t, err, "a URL carries its own credentials")
	assert.Equal(t, "postgres://charger@db:5432/charges?sslmode=require", cfg.Database.ConnectionString())
}

func TestLoad_InvalidEnvValues(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	t.Run("amount", func(t *testing.T) {
		t.Setenv("CHARGE_MINIMUM_AMOUNT", "one dollar")
		_, err := Load("")
		assert.ErrorContains(t, err, "CHARGE_MINIMUM_AMOUNT")
	})

	t.Run("guid", func(t *testing.T) {
		t.Setenv("CHARGE_TRANSACTION_TYPE", "not-a-guid")
		_, err := Load("")
		assert.ErrorContains(t, err, "CHARGE_TRANSACTION_TYPE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing password", mutate: func(c *Config) { c.Database.Password = "" }, wantErr: "DB_PASSWORD is required"},
		{name: "gateway without terminal", mutate: func(c *Config) { c.Gateway.BaseURL = "https://pay.example.com" }, wantErr: "GATEWAY_TERMINAL_ID"},
		{name: "aws without region", mutate: func(c *Config) { c.Secrets.Provider = "aws" }, wantErr: "AWS_REGION"},
		{name: "vault without address", mutate: func(c *Config) { c.Secrets.Provider = "vault" }, wantErr: "VAULT_ADDR"},
		{name: "gcp without project", mutate: func(c *Config) { c.Secrets.Provider = "gcp" }, wantErr: "GCP_PROJECT_ID"},
		{name: "unknown provider", mutate: func(c *Config) { c.Secrets.Provider = "azure" }, wantErr: "unknown secrets provider"},
		{name: "zero minimum", mutate: func(c *Config) { c.Charge.MinimumAmount = c.Charge.MinimumAmount.Sub(c.Charge.MinimumAmount) }, wantErr: "minimum amount"},
		{name: "zero window", mutate: func(c *Config) { c.Charge.RepeatWindow = 0 }, wantErr: "repeat window"},
		{name: "blank prefix", mutate: func(c *Config) { c.Charge.DefaultBatchNamePrefix = "  " }, wantErr: "batch name prefix"},
		{name: "zero lock wait", mutate: func(c *Config) { c.Timeouts.LockWait = 0 }, wantErr: "timeout lock_wait"},
		{name: "gateway outlasts attempt", mutate: func(c *Config) { c.Timeouts.Gateway = c.Timeouts.Attempt }, wantErr: "shorter than the attempt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.Password = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
