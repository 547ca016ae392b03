package sched

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentcron/internal/workspace"
	logx "agentcron/pkg/logx"
)

// ErrJobNotFound is returned by job lookups for an unknown id.
var ErrJobNotFound = errors.New("job not found")

// newJobID returns an 8-hex-char opaque id. Ids are assigned once and never
// reused.
func newJobID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:4])
}

// AddJob creates a job in the workspace's store, computes its first run and
// persists. meta, when non-nil, (re)binds the workspace's dispatch address.
func (s *Service) AddJob(ws workspace.Workspace, name string, schedule Schedule, message string, meta *WorkspaceMeta) (Job, error) {
	if schedule == nil {
		return Job{}, errors.New("schedule required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	if meta != nil {
		c.store.WorkspaceMeta = *meta
	}

	now := time.Now()
	job := Job{
		ID:        newJobID(),
		Name:      name,
		Schedule:  ScheduleSpec{schedule},
		Message:   message,
		Enabled:   true,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	if next, ok := NextRun(schedule, now, s.cfg.DefaultTZ); ok {
		job.State.NextRunAt = next.Unix()
	}
	c.store.Jobs = append(c.store.Jobs, job)
	s.saveLocked(ws, c)

	s.log.Info("job added",
		logx.String("workspace", ws.Name),
		logx.String("job", job.ID),
		logx.String("name", name),
		logx.String("schedule", FormatSchedule(schedule)))
	return job, nil
}

// RemoveJob deletes a job by id. Returns ErrJobNotFound for an unknown id.
func (s *Service) RemoveJob(ws workspace.Workspace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	for i := range c.store.Jobs {
		if c.store.Jobs[i].ID == id {
			c.store.Jobs = append(c.store.Jobs[:i], c.store.Jobs[i+1:]...)
			s.saveLocked(ws, c)
			s.log.Info("job removed", logx.String("workspace", ws.Name), logx.String("job", id))
			return nil
		}
	}
	return ErrJobNotFound
}

// ListJobs returns a copy of the workspace's jobs in store order.
func (s *Service) ListJobs(ws workspace.Workspace) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	out := make([]Job, len(c.store.Jobs))
	copy(out, c.store.Jobs)
	return out
}

// EnableJob re-enables a job, resets its failure streak and recomputes its
// next run from now.
func (s *Service) EnableJob(ws workspace.Workspace, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	job := c.store.FindJob(id)
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	now := time.Now()
	job.Enabled = true
	job.UpdatedAt = now.Unix()
	job.State.ConsecutiveErrors = 0
	job.State.NextRunAt = 0
	if next, ok := NextRun(job.Schedule.Schedule, now, s.cfg.DefaultTZ); ok {
		job.State.NextRunAt = next.Unix()
	}
	s.saveLocked(ws, c)
	return *job, nil
}

// DisableJob disables a job without touching its schedule or state.
func (s *Service) DisableJob(ws workspace.Workspace, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	job := c.store.FindJob(id)
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	job.Enabled = false
	job.UpdatedAt = time.Now().Unix()
	s.saveLocked(ws, c)
	return *job, nil
}

// RunJobNow dispatches a job immediately, regardless of its schedule, and
// persists the resulting state.
func (s *Service) RunJobNow(ctx context.Context, ws workspace.Workspace, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.loadLocked(ws)
	job := c.store.FindJob(id)
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.runJob(ctx, s.cfg, ws, c.store.WorkspaceMeta, job, time.Now())
	s.saveLocked(ws, c)
	return nil
}
