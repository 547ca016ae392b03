package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"agentcron/internal/config"
	"agentcron/internal/notifier"
	"agentcron/internal/sched"
	"agentcron/internal/storage"
	"agentcron/internal/transport"
	telegram "agentcron/internal/transport/telegram"
	"agentcron/internal/workspace"
	logx "agentcron/pkg/logx"
)

// App wires config, transport, storage, alerting and the scheduler together.
type App struct {
	cfgPath string
	cfgm    *config.Manager

	log       logx.Logger
	logCloser io.Closer

	adapter *telegram.Adapter
	store   storage.Store
	notif   *notifier.Service
	sched   *sched.Service

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, err
	}
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	// Run history (optional).
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logCloser.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logCloser.Close()
			return nil, err
		}
		store = st
		log.Info("run history enabled", logx.String("driver", sc.Driver))
	}

	notif := notifier.New(mapNotifierConfig(cfg), ad, log.With(logx.String("comp", "notifier")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logCloser.Close()
		return nil, err
	}
	lister := &workspace.DirLister{Root: cfg.Workspaces.Root}
	schedSvc := sched.New(schedCfg, ad, lister, log.With(logx.String("comp", "sched")))
	if store != nil {
		schedSvc.SetRunRecorder(runRecorder{store})
	}
	if notif.Enabled() {
		schedSvc.SetAlerter(alertSink{notif})
	}

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logCloser: logCloser,
		adapter:   ad,
		store:     store,
		notif:     notif,
		sched:     schedSvc,
	}, nil
}

// Scheduler exposes the scheduler service for CRUD callers.
func (a *App) Scheduler() *sched.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	cfg := a.cfgm.Get()
	if cfg != nil && cfg.Scheduler.Enabled {
		a.sched.Start(runCtx)
	} else {
		a.log.Warn("scheduler disabled in config")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.log.Info("started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the latest config matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config change", fields...)
			}
			lastApplied = newCfg

			for _, s := range sections {
				if s == "storage" || s == "telegram" || s == "logging" || s == "workspaces" {
					a.log.Warn("config section requires restart to take effect", logx.String("section", s))
				}
			}

			schedCfg, err := mapSchedulerConfig(newCfg)
			if err != nil {
				// Validator should have caught this; keep the previous config.
				a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
				continue
			}
			a.sched.Apply(schedCfg)
			a.notif.Apply(mapNotifierConfig(newCfg))

			if newCfg.Scheduler.Enabled {
				a.sched.Start(ctx)
			} else {
				stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				a.sched.Stop(stopCtx)
				cancel()
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.sched.Stop(ctx)
	a.wg.Wait()

	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	a.log.Info("stopped")
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Workspaces.Root) == "" {
		return fmt.Errorf("workspaces.root is required")
	}
	return nil
}

// runRecorder bridges the scheduler's dispatch records into the run-history
// store.
type runRecorder struct {
	store storage.Store
}

func (r runRecorder) AppendRun(ctx context.Context, rec sched.RunRecord) error {
	return r.store.AppendRun(ctx, storage.Run{
		At:        rec.At,
		Workspace: rec.Workspace,
		JobID:     rec.JobID,
		JobName:   rec.JobName,
		Status:    rec.Status,
		Error:     rec.Error,
		TookMS:    rec.Took.Milliseconds(),
	})
}

// alertSink adapts the notifier to the scheduler's fire-and-forget Alerter.
type alertSink struct {
	n *notifier.Service
}

func (a alertSink) Alert(ctx context.Context, text string) {
	_ = a.n.Alert(ctx, text)
}

func mapSchedulerConfig(cfg *config.Config) (sched.Config, error) {
	sc := cfg.Scheduler

	tick, err := config.ParseDurationField("scheduler.tick_interval", sc.TickInterval)
	if err != nil {
		return sched.Config{}, err
	}
	dispatchTimeout, err := config.ParseDurationField("scheduler.dispatch_timeout", sc.DispatchTimeout)
	if err != nil {
		return sched.Config{}, err
	}
	cleanup, err := config.ParseDurationField("scheduler.cleanup_interval", sc.CleanupInterval)
	if err != nil {
		return sched.Config{}, err
	}
	tmpAge, err := config.ParseDurationField("scheduler.tmp_max_age", sc.TmpMaxAge)
	if err != nil {
		return sched.Config{}, err
	}
	voiceAge, err := config.ParseDurationField("scheduler.voice_max_age", sc.VoiceMaxAge)
	if err != nil {
		return sched.Config{}, err
	}
	if tz := strings.TrimSpace(sc.DefaultTimezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return sched.Config{}, fmt.Errorf("scheduler.default_timezone: invalid %q: %w", tz, err)
		}
	}
	if sc.MaxConsecutiveErrors < 0 {
		return sched.Config{}, fmt.Errorf("scheduler.max_consecutive_errors must be >= 0")
	}

	return sched.Config{
		TickInterval:         tick,
		DefaultTZ:            strings.TrimSpace(sc.DefaultTimezone),
		DispatchTimeout:      dispatchTimeout,
		MaxConsecutiveErrors: sc.MaxConsecutiveErrors,
		CleanupInterval:      cleanup,
		TmpMaxAge:            tmpAge,
		VoiceMaxAge:          voiceAge,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	t := cfg.Telegram
	return notifier.Config{
		Enabled: t.AlertChatID != 0,
		Target: transport.ChatTarget{
			ChatID:   t.AlertChatID,
			ThreadID: t.AlertThreadID,
		},
		RatePerSec: t.AlertRatePerSec,
		Burst:      t.AlertBurst,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
