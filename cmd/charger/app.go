package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/kevin07696/automated-charge/internal/adapters/gateway"
	"github.com/kevin07696/automated-charge/internal/adapters/lock"
	"github.com/kevin07696/automated-charge/internal/adapters/postgres"
	"github.com/kevin07696/automated-charge/internal/adapters/secrets"
	"github.com/kevin07696/automated-charge/internal/config"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/internal/services/charge"
	pkghttp "github.com/kevin07696/automated-charge/pkg/http"
	"github.com/kevin07696/automated-charge/pkg/observability"
	"github.com/kevin07696/automated-charge/pkg/resilience"
)

// app holds everything a command needs, built once from configuration
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	db        *postgres.DBExecutor
	redis     *redis.Client
	processor *charge.Processor
	health    *observability.HealthChecker
	closers   []func() error
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logger.Level, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() && !cfg.Logger.Development {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries command results
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.ConnectionString())
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(initCtx, poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a.pool = pool
	a.db = postgres.NewDBExecutor(pool, logger)

	timeouts := &resilience.TimeoutConfig{
		Attempt:     cfg.Timeouts.Attempt,
		Gateway:     cfg.Timeouts.Gateway,
		LockWait:    cfg.Timeouts.LockWait,
		Persistence: cfg.Timeouts.Persistence,
	}

	registry, err := a.newRegistry(initCtx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker := a.newLocker(initCtx, timeouts)

	entities := postgres.NewEntityRepository(pool)
	a.processor = charge.NewProcessor(charge.Dependencies{
		Store:        entities,
		Charges:      entities,
		Registry:     registry,
		DB:           a.db,
		Transactions: postgres.NewTransactionRepository(pool),
		Batches:      postgres.NewBatchRepository(pool),
		Attributes:   postgres.NewAttributeRepository(pool),
		Audit:        postgres.NewHistoryRepository(pool),
		Locker:       locker,
		Timeouts:     timeouts,
		Logger:       logger,
	}, charge.Policy{
		MinimumAmount:          cfg.Charge.MinimumAmount,
		DefaultBatchNamePrefix: cfg.Charge.DefaultBatchNamePrefix,
		RepeatWindow:           cfg.Charge.RepeatWindow,
		DefaultTransactionType: cfg.Charge.DefaultTransactionType,
		DefaultSourceType:      cfg.Charge.DefaultSourceType,
	})

	a.health = observability.NewHealthChecker().Register("database", observability.PingFunc(a.db.HealthCheck))
	if a.redis != nil {
		rdb := a.redis
		a.health.Register("redis", observability.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	return a, nil
}

// newRegistry registers the hosted-pay charger when a gateway endpoint is configured
func (a *app) newRegistry(ctx context.Context) (*gateway.Registry, error) {
	registry := gateway.NewRegistry()
	if a.cfg.Gateway.BaseURL == "" {
		a.logger.Warn("GATEWAY_BASE_URL not set, hosted-pay gateways cannot charge")
		return registry, nil
	}

	provider, err := a.newSecretProvider(ctx)
	if err != nil {
		return nil, err
	}

	hpCfg := gateway.DefaultHostedPayConfig()
	hpCfg.BaseURL = a.cfg.Gateway.BaseURL
	hpCfg.TerminalID = a.cfg.Gateway.TerminalID
	hpCfg.RateLimit = rate.Limit(a.cfg.Gateway.RateLimit)
	hpCfg.RateBurst = a.cfg.Gateway.RateBurst
	hpCfg.Breaker.MaxFailures = uint32(a.cfg.Gateway.BreakerMaxFailures)
	hpCfg.Breaker.OpenTimeout = a.cfg.Gateway.BreakerOpenTimeout

	httpClient := pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), a.cfg.Timeouts.Gateway)
	registry.Register(gateway.EntityTypeHostedPay,
		gateway.NewHostedPayCharger(hpCfg, provider, httpClient, a.logger))

	a.logger.Info("Hosted-pay charger registered",
		zap.String("base_url", hpCfg.BaseURL),
		zap.String("secrets_provider", a.cfg.Secrets.Provider),
	)
	return registry, nil
}

func (a *app) newSecretProvider(ctx context.Context) (ports.SecretProvider, error) {
	s := a.cfg.Secrets
	switch s.Provider {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(s.AWSRegion)
		awsCfg.Profile = s.AWSProfile
		awsCfg.Endpoint = s.AWSEndpoint
		awsCfg.PathPrefix = s.AWSPathPrefix
		awsCfg.CacheTTL = s.CacheTTL
		provider, err := secrets.NewAWSSecretsProvider(ctx, awsCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize aws secrets provider: %w", err)
		}
		return provider, nil
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(s.VaultAddress)
		vaultCfg.AuthMethod = s.VaultAuthMethod
		vaultCfg.Token = s.VaultToken
		vaultCfg.RoleID = s.VaultRoleID
		vaultCfg.SecretID = s.VaultSecretID
		vaultCfg.MountPath = s.VaultMountPath
		vaultCfg.CacheTTL = s.CacheTTL
		provider, err := secrets.NewVaultProvider(ctx, vaultCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize vault secrets provider: %w", err)
		}
		return provider, nil
	case "gcp":
		gcpCfg := secrets.DefaultGCPSecretManagerConfig(s.GCPProjectID)
		gcpCfg.CacheTTL = s.CacheTTL
		provider, err := secrets.NewGCPSecretProvider(ctx, gcpCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gcp secrets provider: %w", err)
		}
		a.closers = append(a.closers, provider.Close)
		return provider, nil
	default:
		return secrets.NewLocalSecretProvider(s.LocalPath, a.logger), nil
	}
}

// newLocker prefers Redis and falls back to an in-process lock when Redis is
// not configured or unreachable at startup
func (a *app) newLocker(ctx context.Context, timeouts *resilience.TimeoutConfig) ports.IdentityLocker {
	if a.cfg.Redis.Addr == "" {
		a.logger.Info("REDIS_ADDR not set, using in-process identity lock")
		return lock.NewLocalLocker(timeouts)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("Redis unreachable, using in-process identity lock",
			zap.String("addr", a.cfg.Redis.Addr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return lock.NewLocalLocker(timeouts)
	}
	a.redis = rdb

	opts := lock.DefaultOptions()
	opts.Expiry = a.cfg.Redis.LockExpiry
	return lock.NewRedisLocker(rdb, opts, timeouts, a.logger)
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("Failed to close client", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
