package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cimillas/stockledger/internal/app"
	"github.com/cimillas/stockledger/internal/config"
	"github.com/cimillas/stockledger/internal/domain"
	"github.com/cimillas/stockledger/internal/observability"
	"github.com/cimillas/stockledger/internal/storage/memory"
	"github.com/cimillas/stockledger/internal/storage/postgres"
	"github.com/cimillas/stockledger/internal/storage/sqlite"
	"github.com/cimillas/stockledger/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ledgerStore is what every store driver provides.
type ledgerStore interface {
	app.ConditionalStore
	app.LedgerReader
	SeedInventory(ctx context.Context, rec domain.InventoryRecord) (bool, error)
	Ping(ctx context.Context) error
}

// runtime is the process-wide state shared by commands: config, logger and
// the telemetry shutdown hook.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

func newRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	envPath, envErr := config.LoadEnvFile()

	levelName := opts.LogLevel
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level, err := observability.ParseLevel(levelName)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	logger := observability.NewLogger(level, config.ServiceName)

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", zap.Error(envErr))
	case envPath == "":
		logger.Debug(".env not found in current or parent directories")
	default:
		logger.Info("loaded env file", zap.String("path", envPath))
	}

	cfg, err := config.Load(logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Store != "" {
		if err := cfg.SetStoreDriver(logger, opts.Store); err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
	}

	shutdown, err := observability.Setup(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "setup telemetry", err)
	}
	if cfg.OtelEndpoint != "" {
		logger = observability.NewOTelLogger(level, config.ServiceName)
	}

	return &runtime{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (r *runtime) close(ctx context.Context) {
	if err := r.shutdown(ctx); err != nil {
		r.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// openStore connects the configured driver. Postgres schemas are migrated on
// open; the sqlite store applies its own schema.
func (r *runtime) openStore(ctx context.Context) (ledgerStore, func(), error) {
	switch r.cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := r.openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, WrapExitError(ExitCommandError, "apply migrations", err)
		}
		r.logger.Info("postgres store ready", zap.Strings("applied_migrations", applied))
		return postgres.NewStore(pool), pool.Close, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(r.cfg.SQLitePath)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "open sqlite store", err)
		}
		r.logger.Info("sqlite store ready", zap.String("path", r.cfg.SQLitePath))
		return store, func() {
			if err := store.Close(); err != nil {
				r.logger.Warn("close sqlite store", zap.Error(err))
			}
		}, nil
	case config.StoreMemory:
		r.logger.Warn("using in-memory store; ledger state is lost on exit")
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, WrapExitError(ExitCommandError, "open store",
			fmt.Errorf("unknown store driver %q", r.cfg.StoreDriver))
	}
}

func (r *runtime) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, r.cfg.DatabaseURL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect to db", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, WrapExitError(ExitCommandError, "db ping", err)
	}
	return pool, nil
}

var errPostgresOnly = errors.New("migrations only apply to the postgres store")
