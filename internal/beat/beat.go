// Package beat is the fixed internal scheduler driving the three
// always-on background jobs: periodic_health_check, update_gpu_stats, and
// the recovery pass. Unlike devclaw's scheduler (which
// manages an open-ended, user-editable job set persisted to storage),
// this beat has a closed, build-time list of three jobs — so it keeps
// devclaw's per-job overlap guard and panic recovery but drops the
// JobStorage/Add/Remove surface that exists there for user-defined jobs.
package beat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/metrics"
)

// Job is one beat entry: a name, a cron schedule, and the work it runs.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Beat runs a fixed set of jobs on a robfig/cron scheduler, guarding
// against overlapping fires of the same job (a slow recovery pass must
// not stack up another recovery pass on top of itself) and recovering
// panics so one bad job doesn't take down the others.
type Beat struct {
	cron    *cron.Cron
	jobs    []Job
	running map[string]bool
	mu      sync.Mutex
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Beat {
	return &Beat{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		running: make(map[string]bool),
		log:     log,
	}
}

// Register adds a job to the beat. Must be called before Start.
func (b *Beat) Register(j Job) error {
	if j.Name == "" || j.Schedule == "" || j.Run == nil {
		return fmt.Errorf("beat: job must have a name, schedule, and run function")
	}
	b.jobs = append(b.jobs, j)
	return nil
}

// Start registers every job with the underlying cron engine and starts
// firing.
func (b *Beat) Start(ctx context.Context) error {
	for _, j := range b.jobs {
		j := j
		if _, err := b.cron.AddFunc(j.Schedule, func() { b.execute(ctx, j) }); err != nil {
			return fmt.Errorf("beat: invalid schedule %q for job %q: %w", j.Schedule, j.Name, err)
		}
	}
	b.cron.Start()
	b.log.Info().Int("jobs", len(b.jobs)).Msg("beat: started")
	return nil
}

// Stop waits (briefly) for in-flight runs to finish before returning.
func (b *Beat) Stop() {
	stopCtx := b.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		b.log.Warn().Msg("beat: stop timed out waiting for in-flight jobs")
	}
}

func (b *Beat) execute(ctx context.Context, j Job) {
	b.mu.Lock()
	if b.running[j.Name] {
		b.mu.Unlock()
		b.log.Debug().Str("job", j.Name).Msg("beat: skipping fire, previous run still in flight")
		return
	}
	b.running[j.Name] = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.running, j.Name)
		b.mu.Unlock()
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("job", j.Name).Msg("beat: job panicked")
		}
	}()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		b.log.Error().Err(err).Str("job", j.Name).Dur("elapsed", time.Since(start)).Msg("beat: job failed")
		metrics.BeatJobRunsTotal.WithLabelValues(j.Name, "err").Inc()
		return
	}
	b.log.Debug().Str("job", j.Name).Dur("elapsed", time.Since(start)).Msg("beat: job completed")
	metrics.BeatJobRunsTotal.WithLabelValues(j.Name, "ok").Inc()
}

// Standard job names, matching /§6's fixed beat set.
const (
	JobHealthCheck  = "periodic_health_check"
	JobGPUStats     = "update_gpu_stats"
	JobRecoveryPass = "recovery_pass"
)

// Standard schedules, matching defaults. Recovery's schedule is
// parameterized by RecoveryBeatInterval rather than fixed, since config
// exposes it as a tunable.
const (
	ScheduleHealthCheck = "@every 10m"
	ScheduleGPUStats    = "@every 30s"
)
