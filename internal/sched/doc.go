// Package sched is the per-workspace job scheduling core.
//
// It covers:
//   - the schedule model (three kinds: cron expression, fixed interval,
//     one-shot timestamp) and its on-disk form
//   - schedule string parsing and display formatting
//   - next-run computation, timezone-aware
//   - the durable per-workspace job store (cron/jobs.json)
//   - the tick loop that dispatches due jobs, tracks failure streaks and
//     prunes each workspace's transient-files area
//
// Dispatch and workspace enumeration are injected collaborators, so the
// whole package is testable with fakes.
package sched
