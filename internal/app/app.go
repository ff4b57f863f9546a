// Package app wires configuration, logging, storage, permissions and the
// scheduler into a dispatcher for a host.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/keshon/cmdmux/internal/command"
	"github.com/keshon/cmdmux/internal/config"
	"github.com/keshon/cmdmux/internal/command/maintenance"
	"github.com/keshon/cmdmux/internal/logging"
	"github.com/keshon/cmdmux/internal/middleware"
	"github.com/keshon/cmdmux/internal/permfile"
	"github.com/keshon/cmdmux/internal/storage"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cooldown"
	"github.com/keshon/cmdmux/pkg/tasks"
	"github.com/keshon/cmdmux/pkg/throttle"
	"github.com/rs/zerolog"
)

const (
	janitorInterval = time.Minute
	floodIdle       = 10 * time.Minute
)

// App owns the long-lived services shared by every host.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Storage     *storage.Storage
	Permissions *permfile.Permissions
	Scheduler   *tasks.Scheduler
	Cooldowns   *cooldown.Store
	Flood       *throttle.Limiter
	Maintenance *middleware.Switch

	logFile io.Closer
	reg     *cmd.Registry
	prune   *tasks.Repeating
	cancel  context.CancelFunc
}

// Option configures New.
type Option func(*logging.Options)

// WithLogOutput sends console log lines to w.
func WithLogOutput(w io.Writer) Option {
	return func(o *logging.Options) { o.Console = w }
}

// New builds every service. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	lopts := logging.Options{
		Level:      cfg.LogLevel,
		Debug:      cfg.Debug,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
	for _, opt := range opts {
		opt(&lopts)
	}
	log, logFile := logging.New(lopts)

	store, err := storage.New(context.Background(), cfg.StoragePath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	perms, err := permfile.Load(cfg.PermissionsFile)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}

	sched := tasks.New(
		tasks.WithWorkers(cfg.AsyncWorkers),
		tasks.WithTick(cfg.Tick),
		tasks.WithLogger(log.With().Str("component", "tasks").Logger()),
		tasks.WithReporter(func(status string) {
			log.Debug().Str("status", status).Msg("task")
		}),
	)

	return &App{
		Config:      cfg,
		Log:         log,
		Storage:     store,
		Permissions: perms,
		Scheduler:   sched,
		Cooldowns:   cooldown.NewStore(cooldown.WithLogger(log)),
		Flood:       throttle.NewLimiter(cfg.FloodRate, cfg.FloodBurst),
		Maintenance: &middleware.Switch{},
		logFile:     logFile,
	}, nil
}

// Start runs the scheduler and the background sweepers until Close.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	go a.Cooldowns.RunJanitor(ctx, janitorInterval)

	a.prune = tasks.NewRepeating(a.Scheduler, max(int64(janitorInterval/a.Config.Tick), 1), false, func(context.Context) error {
		if n := a.Flood.Prune(floodIdle); n > 0 {
			a.Log.Debug().Int("removed", n).Msg("pruned idle flood buckets")
		}
		return nil
	}, tasks.Named("flood-prune"))
	a.prune.Start()
	return nil
}

// Handlers returns the handlers every host registers.
func (a *App) Handlers() []cmd.Handler {
	return command.All(command.Deps{
		Scheduler:   a.Scheduler,
		History:     a.Storage,
		Permissions: a.Permissions,
		Maintenance: a.Maintenance,
	})
}

// Dispatcher registers handlers against host and returns a dispatcher
// that audits into storage. Handlers that fail to register are logged and
// skipped.
func (a *App) Dispatcher(host cmd.Host, handlers ...cmd.Handler) *cmd.Dispatcher {
	a.reg = cmd.NewRegistry(host,
		cmd.WithEnv(a.Config.Env),
		cmd.WithDebug(a.Config.Debug),
		cmd.WithLogger(a.Log.With().Str("component", "cmd").Logger()),
		cmd.WithCooldowns(a.Cooldowns),
	)
	a.reg.Add(handlers...)
	if err := a.reg.RegisterAll(); err != nil {
		a.Log.Error().Err(err).Msg("some commands failed to register")
	}
	a.Log.Info().Int("commands", len(a.reg.Commands())).Str("env", a.Config.Env.String()).Msg("registered commands")

	return cmd.NewDispatcher(a.reg,
		cmd.WithAuditor(a.Storage),
		cmd.WithFloodLimit(a.Flood),
		cmd.WithMiddleware(
			middleware.WithMaintenance(a.Maintenance, maintenance.Bypass),
			middleware.WithCommandLogger(a.Log.With().Str("component", "dispatch").Logger()),
		),
	)
}

// Close unregisters commands, stops the scheduler and closes storage.
func (a *App) Close() error {
	if a.reg != nil {
		a.reg.UnregisterAll()
	}
	if a.prune != nil {
		a.prune.Stop()
	}
	a.Scheduler.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	return errors.Join(a.Storage.Close(), a.logFile.Close())
}
