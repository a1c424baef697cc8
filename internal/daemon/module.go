package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/matheus3301/chatmirror/internal/api"
	"github.com/matheus3301/chatmirror/internal/bus"
	"github.com/matheus3301/chatmirror/internal/config"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/lock"
	"github.com/matheus3301/chatmirror/internal/logging"
	"github.com/matheus3301/chatmirror/internal/metrics"
	"github.com/matheus3301/chatmirror/internal/outbox"
	"github.com/matheus3301/chatmirror/internal/push"
	"github.com/matheus3301/chatmirror/internal/rest"
	"github.com/matheus3301/chatmirror/internal/session"
	"github.com/matheus3301/chatmirror/internal/state"
	"github.com/matheus3301/chatmirror/internal/status"
	"github.com/matheus3301/chatmirror/internal/store"
	intsync "github.com/matheus3301/chatmirror/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrNoAPI is returned for operations when no api_base_url is configured.
var ErrNoAPI = errors.New("no api_base_url configured")

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.chatmirror/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideMetrics,
			provideStateMachine,
			provideLock,
			provideStore,
			provideState,
			provideSnapshotter,
			provideEngine,
			provideInlet,
			provideSource,
			provideTransport,
			provideRunner,
			provideStateService,
			provideMetricsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.Resolve(path)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics(b *bus.Bus) *metrics.Metrics {
	m := metrics.New()
	m.WatchBusDrops(b.Dropped)
	return m
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LockPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.SnapshotDBPath(p.SessionName)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideState(logger *zap.Logger) *state.Store {
	return state.New(logger)
}

func provideSnapshotter(p Params, db *store.DB, st *state.Store, cfg *config.Config, logger *zap.Logger) *store.Snapshotter {
	return store.NewSnapshotter(db, st, p.SessionName, cfg.SnapshotInterval, logger)
}

func provideEngine(st *state.Store, b *bus.Bus, m *metrics.Metrics, cfg *config.Config, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(st, b, logger, intsync.Options{TypingTTL: cfg.TypingTTL, Metrics: m})
}

func provideInlet(b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *push.Inlet {
	return push.NewInlet(b, m, logger)
}

// provideSource returns nil when no push_url is configured; events can then
// only arrive through the local API.
func provideSource(cfg *config.Config, inlet *push.Inlet, machine *status.Machine, logger *zap.Logger) *push.Source {
	if cfg.PushURL == "" {
		return nil
	}
	return push.NewSource(cfg.PushURL, cfg.Token, inlet, machine, logger)
}

type noTransport struct{}

func (noTransport) Do(_ context.Context, op events.Operation) (outbox.Result, error) {
	return outbox.Result{}, fmt.Errorf("%s: %w", op.Kind, ErrNoAPI)
}

func provideTransport(cfg *config.Config, logger *zap.Logger) outbox.Transport {
	if cfg.APIBaseURL == "" {
		logger.Warn("api_base_url not set, remote operations will fail")
		return noTransport{}
	}
	return rest.NewClient(cfg.APIBaseURL, cfg.Token, &http.Client{Timeout: cfg.OperationTimeout})
}

func provideRunner(t outbox.Transport, st *state.Store, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Runner {
	return outbox.NewRunner(t, st, b, logger, outbox.Options{Timeout: cfg.OperationTimeout})
}

func provideStateService(p Params, st *state.Store, inlet *push.Inlet, runner *outbox.Runner, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *api.StateService {
	return api.NewStateService(p.SessionName, st, inlet, runner, b, machine, logger)
}

func provideMetricsServer(cfg *config.Config, m *metrics.Metrics) *http.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

type lifecycleParams struct {
	fx.In

	Config      *config.Config
	Server      *Server
	Lock        *lock.Lock
	DB          *store.DB
	Snapshotter *store.Snapshotter
	Engine      *intsync.Engine
	Inlet       *push.Inlet
	Source      *push.Source
	Runner      *outbox.Runner
	Metrics     *http.Server
	Logger      *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			restored := false
			if lp.Config.RestoreSnapshot {
				ok, err := lp.Snapshotter.Restore(lp.Config.UserID)
				if err != nil {
					logger.Warn("snapshot restore failed", zap.Error(err))
				}
				restored = ok
			}

			// Start the engine before anything can publish chat events.
			lp.Engine.Start(context.Background())
			if !restored && lp.Config.UserID != "" {
				lp.Inlet.Publish(events.SessionStarted{UserID: lp.Config.UserID})
			}

			lp.Snapshotter.Start(context.Background())
			lp.Runner.Start(context.Background())
			if lp.Source != nil {
				lp.Source.Start(context.Background())
			}

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if lp.Metrics != nil {
				go func() {
					logger.Info("metrics server starting", zap.String("addr", lp.Metrics.Addr))
					if err := lp.Metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if lp.Source != nil {
				lp.Source.Stop()
			}
			lp.Runner.Stop()
			lp.Engine.Stop()
			lp.Snapshotter.Stop()
			if lp.Metrics != nil {
				_ = lp.Metrics.Shutdown(ctx)
			}
			lp.Server.Stop(ctx)
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
