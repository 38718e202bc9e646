package daemon

import (
	"context"

	"github.com/matheus3301/warchive/internal/bus"
	"github.com/matheus3301/warchive/internal/config"
	"github.com/matheus3301/warchive/internal/ingest"
	"github.com/matheus3301/warchive/internal/lock"
	"github.com/matheus3301/warchive/internal/logging"
	"github.com/matheus3301/warchive/internal/session"
	"github.com/matheus3301/warchive/internal/status"
	"github.com/matheus3301/warchive/internal/store"
	"github.com/matheus3301/warchive/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the archiver daemon, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideNormalizer,
			providePipeline,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		zap.Int("max_attempts", cfg.Reconnect.MaxAttempts),
		zap.Duration("base_delay", cfg.BaseDelay()),
		zap.Duration("cap_delay", cfg.CapDelay()))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.ArchiveDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAdapter(p Params, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, logger)
}

func provideNormalizer(adapter *wa.Adapter, cfg *config.Config, logger *zap.Logger) *ingest.Normalizer {
	return ingest.NewNormalizer(adapter, cfg.LookupTimeout(), cfg.MediaTimeout(), logger)
}

func providePipeline(normalizer *ingest.Normalizer, db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(normalizer, db, b, logger)
}

func provideManager(p Params, adapter *wa.Adapter, pipeline *ingest.Pipeline, machine *status.Machine, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *session.Manager {
	return session.NewManager(p.SessionName, adapter, pipeline, machine, b, cfg, session.QRPath(p.SessionName), logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, mgr *session.Manager, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mgr.Initialize(ctx)
		},
		OnStop: func(ctx context.Context) error {
			mgr.Shutdown(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
