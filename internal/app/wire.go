package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/brokerage/internal/blob/s3"
	"github.com/alanyoungcy/brokerage/internal/cache/redis"
	"github.com/alanyoungcy/brokerage/internal/config"
	"github.com/alanyoungcy/brokerage/internal/domain"
	"github.com/alanyoungcy/brokerage/internal/service"
	"github.com/alanyoungcy/brokerage/internal/store/postgres"
)

// Dependencies bundles the concrete collaborators the modes run on. Redis
// and S3 backed fields are nil when those backends are disabled.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client

	// Stores
	InstrumentStore *postgres.InstrumentStore
	MarketDataStore *postgres.MarketDataStore
	OrderStore      *postgres.OrderStore
	AuditStore      domain.AuditStore

	// Caches
	BarCache        domain.BarCache
	InstrumentCache domain.InstrumentCache
	RateLimiter     domain.RateLimiter
	LockManager     domain.LockManager
	SignalBus       domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Services
	Instruments *service.InstrumentService
	MarketData  *service.MarketDataService
	Portfolios  *service.PortfolioService
	Orders      *service.OrderService
}

// Wire constructs every dependency from cfg and returns a cleanup function
// releasing them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:            cfg.Postgres.DSN,
		Host:           cfg.Postgres.Host,
		Port:           cfg.Postgres.Port,
		Database:       cfg.Postgres.Database,
		User:           cfg.Postgres.User,
		Password:       cfg.Postgres.Password,
		SSLMode:        cfg.Postgres.SSLMode,
		MaxConns:       cfg.Postgres.PoolMaxConns,
		MinConns:       cfg.Postgres.PoolMinConns,
		ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Postgres = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.InstrumentStore = postgres.NewInstrumentStore(pool)
	deps.MarketDataStore = postgres.NewMarketDataStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Redis = redisClient

		deps.BarCache = redis.NewBarCache(redisClient, cfg.Redis.BarTTL.Duration)
		deps.InstrumentCache = redis.NewInstrumentCache(redisClient, cfg.Redis.InstrumentTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		logger.WarnContext(ctx, "wire: redis disabled; running without caches, order locks, rate limiting or events")
	}

	// --- S3 (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.S3 = s3Client

		writer := s3blob.NewWriter(s3Client, int64(cfg.S3.PartSizeMB)<<20)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewOrderArchiver(writer, deps.OrderStore, deps.AuditStore)
	}

	// --- Services ---
	deps.Instruments = service.NewInstrumentService(deps.InstrumentStore, deps.InstrumentCache, logger)
	deps.MarketData = service.NewMarketDataService(deps.MarketDataStore, deps.BarCache, logger)
	deps.Portfolios = service.NewPortfolioService(deps.OrderStore, deps.Instruments, deps.MarketData, logger)

	validator := service.NewOrderValidator(deps.Instruments, deps.MarketData)
	deps.Orders = service.NewOrderService(validator, deps.OrderStore, deps.MarketData, deps.Portfolios, logger).
		WithAudit(deps.AuditStore)
	if deps.LockManager != nil {
		deps.Orders.WithLocks(deps.LockManager, cfg.Orders.LockTTL.Duration, cfg.Orders.LockWait.Duration)
	}
	if deps.SignalBus != nil {
		deps.Orders.WithEvents(deps.SignalBus)
	}

	return deps, cleanup, nil
}
