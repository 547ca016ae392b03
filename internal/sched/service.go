package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentcron/internal/workspace"
	logx "agentcron/pkg/logx"
)

// Dispatcher delivers a job's message to the workspace's conversational
// session. An explicit rejection and a timeout are equivalent failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, ws workspace.Workspace, meta WorkspaceMeta, message string) error
}

// Lister enumerates the workspaces to process each tick. The set may change
// between ticks.
type Lister interface {
	Workspaces() ([]workspace.Workspace, error)
}

// RunRecorder receives one record per dispatch attempt. Optional; failures
// to record are logged and otherwise ignored.
type RunRecorder interface {
	AppendRun(ctx context.Context, r RunRecord) error
}

// RunRecord describes one dispatch attempt.
type RunRecord struct {
	Workspace string
	JobID     string
	JobName   string
	At        time.Time
	Status    string
	Error     string
	Took      time.Duration
}

// Alerter surfaces events that need a human, such as a job being
// auto-disabled. Optional.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Config holds the scheduler's tunables. Zero values fall back to defaults.
type Config struct {
	TickInterval         time.Duration
	DefaultTZ            string
	DispatchTimeout      time.Duration
	MaxConsecutiveErrors int
	CleanupInterval      time.Duration
	TmpMaxAge            time.Duration
	VoiceMaxAge          time.Duration
}

const (
	defaultTickInterval    = 30 * time.Second
	defaultDispatchTimeout = 2 * time.Minute
	defaultMaxErrors       = 5
	defaultCleanupInterval = time.Hour
	alertTimeout           = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = defaultDispatchTimeout
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = defaultMaxErrors
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.TmpMaxAge <= 0 {
		c.TmpMaxAge = DefaultTmpMaxAge
	}
	if c.VoiceMaxAge <= 0 {
		c.VoiceMaxAge = DefaultVoiceMaxAge
	}
	return c
}

// wsCache is the in-memory copy of one workspace's store plus the mtime it
// was loaded at. The mtime comparison is the only synchronization with
// external editors; last writer wins on the whole file.
type wsCache struct {
	store       *StoreFile
	loadedMtime time.Time
}

// Service owns the tick loop. One instance per process; ticks are strictly
// sequential across all workspaces.
type Service struct {
	log      logx.Logger
	dispatch Dispatcher
	list     Lister

	// mu serializes ticks, CRUD calls and config updates. Everything that
	// touches a workspace cache holds it.
	mu          sync.Mutex
	cfg         Config
	cache       map[string]*wsCache
	lastCleanup time.Time

	runs  RunRecorder
	alert Alerter

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, dispatch Dispatcher, list Lister, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		dispatch: dispatch,
		list:     list,
		cfg:      cfg.withDefaults(),
		cache:    map[string]*wsCache{},
	}
}

// SetRunRecorder attaches an optional dispatch-history sink. Call before Start.
func (s *Service) SetRunRecorder(r RunRecorder) { s.runs = r }

// SetAlerter attaches an optional operator-alert sink. Call before Start.
func (s *Service) SetAlerter(a Alerter) { s.alert = a }

// Apply updates tunables; the next tick picks them up.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Start launches the tick loop. The first tick runs immediately so jobs that
// came due while the process was down fire once without waiting a full
// interval.
func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx)
	s.log.Info("scheduler started", logx.Duration("tick", s.tickInterval()))
}

// Stop requests a clean stop between ticks: any in-flight dispatch finishes
// (or times out), its state is persisted, and no new tick starts.
func (s *Service) Stop(ctx context.Context) {
	s.runMu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	start := time.Now()
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) tickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.TickInterval
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.Tick(ctx, time.Now())

	t := time.NewTicker(s.tickInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx, time.Now())
			// Interval may have changed via Apply.
			t.Reset(s.tickInterval())
		}
	}
}

// Tick processes every workspace once: reload on external change, dispatch
// due jobs in store order, persist changed stores, and run retention cleanup
// on its own cadence. now is the tick's single reference instant.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg

	wss, err := s.list.Workspaces()
	if err != nil {
		s.log.Warn("workspace enumeration failed", logx.Err(err))
		return
	}

	seen := make(map[string]bool, len(wss))
	for _, ws := range wss {
		seen[ws.Name] = true
		s.tickWorkspace(ctx, cfg, ws, now)
		if ctx.Err() != nil {
			// Clean stop between workspaces: everything processed so far
			// has already been persisted.
			return
		}
	}
	// Drop caches for workspaces that disappeared.
	for name := range s.cache {
		if !seen[name] {
			delete(s.cache, name)
		}
	}

	if now.Sub(s.lastCleanup) >= cfg.CleanupInterval {
		s.lastCleanup = now
		s.cleanupAll(wss, now, cfg)
	}
}

// loadLocked returns the cached store for a workspace, reloading from disk
// when the file's mtime is newer than what we loaded. This is the sole
// cache-invalidation rule.
func (s *Service) loadLocked(ws workspace.Workspace) *wsCache {
	c := s.cache[ws.Name]
	mtime := StoreMtime(ws.Dir)
	if c == nil || mtime.After(c.loadedMtime) {
		if c != nil {
			s.log.Debug("job store changed externally, reloading", logx.String("workspace", ws.Name))
		}
		c = &wsCache{store: LoadStore(ws.Dir, s.log), loadedMtime: mtime}
		s.cache[ws.Name] = c
	}
	return c
}

// saveLocked persists a workspace's store and refreshes the cached mtime so
// our own write is not mistaken for an external edit.
func (s *Service) saveLocked(ws workspace.Workspace, c *wsCache) {
	if err := SaveStore(ws.Dir, c.store); err != nil {
		// Keep the in-memory state; the next tick retries the write.
		s.log.Error("job store save failed", logx.String("workspace", ws.Name), logx.Err(err))
		return
	}
	c.loadedMtime = StoreMtime(ws.Dir)
}

func (s *Service) tickWorkspace(ctx context.Context, cfg Config, ws workspace.Workspace, now time.Time) {
	c := s.loadLocked(ws)

	changed := false
	for i := range c.store.Jobs {
		job := &c.store.Jobs[i]
		if !job.Enabled {
			continue
		}
		if job.State.NextRunAt == 0 {
			// Never scheduled: compute first. Due this tick only if the
			// schedule already resolves at or before now.
			next, ok := NextRun(job.Schedule.Schedule, now, cfg.DefaultTZ)
			if !ok {
				continue
			}
			job.State.NextRunAt = next.Unix()
			changed = true
			if next.After(now) {
				continue
			}
		}
		if job.State.NextRunAt > now.Unix() {
			continue
		}
		s.runJob(ctx, cfg, ws, c.store.WorkspaceMeta, job, now)
		changed = true
	}

	if changed {
		s.saveLocked(ws, c)
	}
}

// runJob dispatches one due job and updates its runtime state. At most one
// dispatch per due job per tick.
func (s *Service) runJob(ctx context.Context, cfg Config, ws workspace.Workspace, meta WorkspaceMeta, job *Job, now time.Time) {
	start := time.Now()
	// A stop request takes effect between jobs, never by aborting work
	// already in flight. Only the dispatch timeout bounds the call.
	base := context.WithoutCancel(ctx)
	dctx, cancel := context.WithTimeout(base, cfg.DispatchTimeout)
	err := s.dispatch.Dispatch(dctx, ws, meta, job.Message)
	cancel()
	took := time.Since(start)

	job.State.LastRunAt = now.Unix()
	if err != nil {
		job.State.LastStatus = "error"
		job.State.ConsecutiveErrors++
		s.log.Warn("job dispatch failed",
			logx.String("workspace", ws.Name),
			logx.String("job", job.ID),
			logx.String("name", job.Name),
			logx.Int("consecutive_errors", job.State.ConsecutiveErrors),
			logx.Err(err))
		if job.State.ConsecutiveErrors >= cfg.MaxConsecutiveErrors {
			// Terminal until re-enabled externally.
			job.Enabled = false
			s.log.Error("job auto-disabled after repeated failures",
				logx.String("workspace", ws.Name),
				logx.String("job", job.ID),
				logx.Int("failures", job.State.ConsecutiveErrors))
			if s.alert != nil {
				// Bounded so a slow alert transport cannot stall the tick.
				actx, acancel := context.WithTimeout(base, alertTimeout)
				s.alert.Alert(actx, fmt.Sprintf(
					"job %q (%s) in workspace %s auto-disabled after %d consecutive failures",
					job.Name, job.ID, ws.Name, job.State.ConsecutiveErrors))
				acancel()
			}
		}
	} else {
		job.State.LastStatus = "ok"
		job.State.ConsecutiveErrors = 0
		s.log.Info("job dispatched",
			logx.String("workspace", ws.Name),
			logx.String("job", job.ID),
			logx.String("name", job.Name),
			logx.Duration("took", took))
	}

	if s.runs != nil {
		rec := RunRecord{
			Workspace: ws.Name,
			JobID:     job.ID,
			JobName:   job.Name,
			At:        now,
			Status:    job.State.LastStatus,
			Took:      took,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if aerr := s.runs.AppendRun(base, rec); aerr != nil {
			s.log.Debug("run history append failed", logx.Err(aerr))
		}
	}

	// A one-shot is consumed by its single execution, scheduled or manual.
	// Disabling it keeps the record but stops the tick loop from re-arming
	// it; clearing next_run_at alone would read as "never scheduled".
	if job.Schedule.Schedule != nil && job.Schedule.Kind() == KindAt {
		job.State.NextRunAt = 0
		job.Enabled = false
		return
	}
	// Reschedule anchored at now so missed ticks do not compound backlog.
	next, ok := NextRun(job.Schedule.Schedule, now, cfg.DefaultTZ)
	if !ok {
		job.State.NextRunAt = 0
		s.log.Warn("no next run for job schedule",
			logx.String("workspace", ws.Name),
			logx.String("job", job.ID),
			logx.String("schedule", FormatSchedule(job.Schedule.Schedule)))
		return
	}
	job.State.NextRunAt = next.Unix()
}

func (s *Service) cleanupAll(wss []workspace.Workspace, now time.Time, cfg Config) {
	total := 0
	for _, ws := range wss {
		n, err := CleanupTmp(ws.Dir, now, cfg.TmpMaxAge, cfg.VoiceMaxAge)
		total += n
		if err != nil {
			s.log.Warn("tmp cleanup failed", logx.String("workspace", ws.Name), logx.Err(err))
		}
	}
	if total > 0 {
		s.log.Info("tmp retention cleanup", logx.Int("deleted", total))
	}
}
