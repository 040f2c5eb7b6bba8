// Package scheduler fires injections on a timer: recurring cron triggers
// (github.com/robfig/cron/v3) and one-shot absolute-time triggers checked
// on a once-per-minute tick. Both kinds are persisted to scheduler.json
// via the teacher's internal/storage.Storage JSON-file convention, so a
// restart resumes every schedule without replaying ticks missed during
// downtime: cron.Cron only ever looks forward from the moment it starts,
// and a one-shot has exactly one pending occurrence rather than a series
// to catch up on.
package scheduler
