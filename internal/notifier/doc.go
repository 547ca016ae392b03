// Package notifier delivers operator alerts.
//
// Alerts are small, high-signal messages (a job was auto-disabled, the
// scheduler hit a persistent error) sent to a single configured operator
// chat. Delivery is rate limited; alerts that exceed the limit are dropped
// rather than queued, since a stale alert is worse than a missing one.
//
// For debugging and operator visibility, the service keeps a small
// in-memory history of recently sent alerts.
package notifier
