package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"framekit/internal/config"
	"framekit/internal/eventbus"
	"framekit/internal/frame"
	"framekit/internal/registry"
	"framekit/internal/runtime/supervisor"
	"framekit/internal/storage"
	logx "framekit/pkg/logx"
	"framekit/pkg/systemd"
	"framekit/plugins/devtools"
	"framekit/plugins/heartbeat"
)

const defaultBusyTimeout = time.Second

// StopReason is logged when the app stops.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	host  *frame.LoopHost
	sched *frame.Scheduler
	reg   *registry.Registry
	dev   *devtools.Plugin

	sup        *supervisor.Supervisor
	loopCancel context.CancelFunc
}

// LoadEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetPrepare(config.ApplyEnv)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	host := frame.NewLoopHost(cfg.Host.Rate(), log.With(logx.String("comp", "loop")))
	sched := frame.NewScheduler(host, mapTickerConfig(cfg), frame.WithLogger(log.With(logx.String("comp", "ticker"))))
	reg := registry.New(
		registry.WithLogger(log.With(logx.String("comp", "registry"))),
		registry.WithBus(bus),
	)

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		host:    host,
		sched:   sched,
		reg:     reg,
	}

	reg.Add(sched)
	if cfg.DevTools.Enabled {
		dc, err := mapDevToolsConfig(cfg)
		if err != nil {
			a.closeResources()
			return nil, err
		}
		a.dev = devtools.New(dc, devtools.Deps{Log: log, Bus: bus, Store: store, Loop: host})
		reg.Add(a.dev)
	}
	if cfg.Heartbeat.Enabled {
		hc, err := mapHeartbeatConfig(cfg)
		if err != nil {
			a.closeResources()
			return nil, err
		}
		reg.Add(heartbeat.New(hc, log, bus))
	}
	return a, nil
}

func (a *App) Registry() *registry.Registry { return a.reg }
func (a *App) Scheduler() *frame.Scheduler  { return a.sched }
func (a *App) Host() *frame.LoopHost        { return a.host }
func (a *App) Bus() eventbus.Bus            { return a.bus }

// DevTools returns the diagnostics subsystem, nil when disabled.
func (a *App) DevTools() *devtools.Plugin { return a.dev }

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the frame loop, initializes the registry on it, starts the
// scheduler and the config watcher.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	// The loop outlives the supervisor context so subsystems can be removed
	// on it during Stop.
	loopCtx, loopCancel := context.WithCancel(context.Background())
	a.loopCancel = loopCancel
	a.sup.Go("frame.loop", func(context.Context) error { return a.host.Run(loopCtx) })

	start := time.Now()
	var initErr error
	if err := a.host.Do(ctx, func() {
		if initErr = a.reg.Init(ctx); initErr == nil {
			a.sched.Start()
		}
	}); err != nil {
		return err
	}
	if initErr != nil {
		return initErr
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(config.Validator)
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.apply", func(c context.Context) { a.applyLoop(c, sub) })
	a.sup.GoRestart("config.watch", 250*time.Millisecond, 5*time.Second, a.cfgm.Watch)

	a.watchSignals(a.sup)

	if wd, err := systemd.WatchdogInterval(); err != nil {
		a.log.Warn("systemd watchdog misconfigured", logx.Err(err))
	} else if wd > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return systemd.Watchdog(c, wd, a.loopAlive)
		})
	}
	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		_, _ = systemd.Status(fmt.Sprintf("running %d subsystems", a.reg.Len()))
		a.log.Debug("systemd notified ready")
	}

	a.log.Info("app started",
		logx.Int("subsystems", a.reg.Len()),
		logx.Int("refresh_rate", int(time.Second/a.host.Interval())),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}

// loopAlive reports whether the frame loop answers within a second.
func (a *App) loopAlive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return a.host.Do(ctx, func() {}) == nil
}

// applyLoop applies hot-reloaded config. Scheduler changes are posted onto
// the frame loop.
func (a *App) applyLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			if _, err := systemd.Reloading(); err != nil {
				a.log.Debug("systemd notify failed", logx.Err(err))
			}
			a.apply(last, cfg)
			last = cfg
			if _, err := systemd.Ready(); err != nil {
				a.log.Debug("systemd notify failed", logx.Err(err))
			}
		}
	}
}

func (a *App) apply(prev, cfg *config.Config) {
	sections, attrs := config.SummarizeChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	restart := make([]string, 0, len(sections))
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(cfg))
		case "ticker":
			tc := mapTickerConfig(cfg)
			a.host.Post(func() {
				a.sched.SetSpeed(tc.Speed)
				if a.sched.Limit() != tc.Limit {
					a.sched.SetLimit(tc.Limit)
				}
			})
			if prev == nil || prev.Ticker.VisibilityEnabled() != cfg.Ticker.VisibilityEnabled() {
				restart = append(restart, "ticker.visibility")
			}
		default:
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop removes every subsystem in reverse order on the frame loop, then
// stops the loop and background goroutines and closes storage and logs.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	a.sup.Cancel()

	var errs []error
	var shutdownErr error
	err := a.host.Do(ctx, func() { shutdownErr = a.reg.Shutdown(ctx) })
	if errors.Is(err, frame.ErrLoopClosed) {
		// Loop already gone; nothing else can touch the subsystems.
		shutdownErr = a.reg.Shutdown(ctx)
	} else if err != nil {
		errs = append(errs, fmt.Errorf("registry shutdown: %w", err))
	}
	if shutdownErr != nil {
		a.log.Warn("subsystem removal reported errors", logx.Err(shutdownErr))
		errs = append(errs, shutdownErr)
	}

	a.loopCancel()
	if err := a.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}

	a.log.Info("stopped")
	a.closeResources()
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}
