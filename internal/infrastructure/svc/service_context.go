package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mktdata/internal/application/port"
	"mktdata/internal/application/service"
	"mktdata/internal/application/usecase/collector"
	"mktdata/internal/domain/model"
	"mktdata/internal/infrastructure/config"
	"mktdata/internal/infrastructure/metrics"
	"mktdata/internal/infrastructure/provider/eodhd"
	"mktdata/internal/infrastructure/storage"
	"mktdata/internal/infrastructure/storage/composite"
	"mktdata/internal/infrastructure/storage/migrate"
	"mktdata/internal/infrastructure/storage/postgres"
	redisrepo "mktdata/internal/infrastructure/storage/redis"
	"mktdata/internal/infrastructure/storage/sqlite"
	"mktdata/internal/infrastructure/storage/sqlstore"
	"mktdata/internal/interfaces/console"
)

// SchemaResult lists what InitializeSchema changed.
type SchemaResult struct {
	AppliedMigrations []string
	RefreshedObjects  []string
}

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	db          *storage.DB
	redisClient *redisclient.Client
	redisRepo   *redisrepo.Repo
	catalog     *sqlstore.CatalogRepo
	series      *sqlstore.SeriesRepo
	provider    port.Provider
	metrics     *metrics.Metrics

	// 输出端口
	Console *console.Sink
	Sinks   *composite.Repo

	// 应用业务组件（依赖基础设施）
	collector *collector.Service

	// 资源管理
	closerChain []func() error
}

type Option func(*ServiceContext)

// WithProvider replaces the EODHD client, mainly for tests.
func WithProvider(p port.Provider) Option {
	return func(sc *ServiceContext) { sc.provider = p }
}

// WithConsole redirects console output.
func WithConsole(c *console.Sink) Option {
	return func(sc *ServiceContext) { sc.Console = c }
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Console:     console.NewSink(),
		closerChain: make([]func() error, 0),
	}
	for _, opt := range opts {
		opt(sc)
	}
	collector.Enter(collector.StageIdle)

	// 初始化所有组件，按依赖顺序
	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	sc.metrics = metrics.New(metrics.Config{
		PushgatewayURL: sc.Config.Metrics.PushgatewayURL,
		Job:            sc.Config.Metrics.Job,
	})

	if sc.provider == nil {
		sc.provider = eodhd.NewClient(eodhd.Options{
			BaseURL:        sc.Config.Provider.BaseURL,
			APIKey:         sc.Config.Provider.APIKey,
			EquityExchange: sc.Config.Provider.EquityExchange,
			EquityTypes:    sc.Config.Provider.EquityTypes,
			RequestsPerSec: sc.Config.Provider.RatePerSec,
			Burst:          sc.Config.Provider.Burst,
			Timeout:        sc.Config.Timeout(),
			MaxRetries:     uint64(sc.Config.Provider.MaxRetries),
		})
	}

	sc.Sinks = composite.New(sc.Console)
	if sc.redisRepo != nil {
		sc.Sinks = composite.New(sc.Console, sc.redisRepo)
	}

	sc.collector = collector.NewService(collector.ServiceDeps{
		Provider:   sc.provider,
		Reconciler: service.NewReconciler(sc.catalog, sc.metrics),
		Ingestor: service.NewSeriesIngestor(sc.provider, sc.catalog, sc.series, sc.metrics, service.SeriesIngestorConfig{
			Lookback:    sc.Config.Lookback(),
			Concurrency: sc.Config.Ingest.Concurrency,
		}),
		Metrics: sc.metrics,
		Allow: map[model.AssetClass][]string{
			model.AssetClassEquity: sc.Config.Ingest.Equities,
			model.AssetClassFX:     sc.Config.Ingest.FX,
		},
	})

	log.Info().
		Str("provider", sc.provider.Code()).
		Int("sinks", sc.Sinks.Len()).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层 (数据库 和 Redis)
func (sc *ServiceContext) initializeStorage() error {
	if err := sc.initDB(); err != nil {
		return err
	}
	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	return nil
}

func (sc *ServiceContext) initDB() error {
	var (
		db  *storage.DB
		err error
	)
	switch sc.Config.DB.Driver {
	case config.DriverPostgres:
		db, err = postgres.Open(sc.Ctx, sc.Config.DB.DSN, postgres.Options{
			MaxOpenConns:    sc.Config.DB.MaxOpenConns,
			MaxIdleConns:    sc.Config.DB.MaxIdleConns,
			ConnMaxLifetime: time.Duration(sc.Config.DB.ConnMaxLifetimeSec) * time.Second,
		})
	case config.DriverSQLite:
		db, err = sqlite.Open(sc.Ctx, sc.Config.DB.Path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, sc.Config.DB.Driver)
	}
	if err != nil {
		return err
	}

	sc.db = db
	sc.catalog = sqlstore.NewCatalogRepo(db)
	sc.series = sqlstore.NewSeriesRepo(db)

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Str("driver", sc.Config.DB.Driver).Msg("closing database connection")
		return db.Close()
	})

	log.Info().
		Str("driver", sc.Config.DB.Driver).
		Msg("✓ Database initialized")
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.redisRepo = redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.RedisTTL(),
		sc.Config.Redis.Stream,
		sc.Config.Redis.Channel,
	)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// InitializeSchema applies pending migrations, then recreates views and triggers.
// Objects are only refreshed once every migration succeeded.
func (sc *ServiceContext) InitializeSchema(ctx context.Context) (SchemaResult, error) {
	var res SchemaResult

	collector.Enter(collector.StageMigratingSchema)
	start := time.Now()
	runner := migrate.NewRunner(sc.db, migrate.NewLedger(sc.db), migrate.Migrations())
	applied, err := runner.ApplyPending(ctx)
	res.AppliedMigrations = applied
	if err != nil {
		collector.Enter(collector.StageFailed)
		return res, fmt.Errorf("migrate schema: %w", err)
	}
	sc.metrics.StageDuration("migrate", time.Since(start))

	collector.Enter(collector.StageRefreshingObjects)
	start = time.Now()
	refreshed, err := migrate.NewRefresher(sc.db, migrate.Objects()).RefreshAll(ctx)
	res.RefreshedObjects = refreshed
	if err != nil {
		collector.Enter(collector.StageFailed)
		return res, fmt.Errorf("refresh objects: %w", err)
	}
	sc.metrics.StageDuration("refresh", time.Since(start))

	log.Info().
		Strs("applied", applied).
		Strs("refreshed", refreshed).
		Msg("schema ready")
	return res, nil
}

// CollectReferenceDataAndSeries runs one collection pass and hands the report
// to every sink. Sink and metrics push failures are logged only.
func (sc *ServiceContext) CollectReferenceDataAndSeries(ctx context.Context) (*model.IngestionReport, error) {
	report, err := sc.collector.Run(ctx)
	if err != nil {
		return report, err
	}

	if err := sc.Sinks.Publish(ctx, report); err != nil {
		log.Warn().Err(err).Msg("report publishing incomplete")
	}

	sc.metrics.MarkSuccess(report.FinishedAt)
	if err := sc.metrics.Push(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics push failed")
	}
	return report, nil
}

// DB exposes the storage handle.
func (sc *ServiceContext) DB() *storage.DB { return sc.db }

// Metrics exposes the run metrics.
func (sc *ServiceContext) Metrics() *metrics.Metrics { return sc.metrics }

// Close 释放所有资源
func (sc *ServiceContext) Close() error {
	// 按照相反的顺序关闭所有资源
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
