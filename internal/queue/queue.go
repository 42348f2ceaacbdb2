// Package queue is the Queue Router:
// a static task-type → queue routing table plus one worker pool per
// resource-class queue, each with its own configured concurrency. The
// GPU queue is pinned to a single global slot; CPU/NLP/download/utility
// run in parallel up to their configured worker counts.
//
// Each pool runs a job channel with atomic completed/failed counters
// behind Start/Stop/Enqueue/Stats, dispatching an arbitrary
// func(context.Context) error rather than a single hardcoded job type.
package queue

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/model"
)

// routingTable is the static task-type → queue map ( redesign
// note: dispatch is a build-time registry, not dynamic string lookup).
var routingTable = map[model.TaskType]model.Queue{
	model.TaskTypeTranscription:        model.QueueGPU,
	model.TaskTypeWaveform:             model.QueueCPU,
	model.TaskTypeAnalytics:            model.QueueCPU,
	model.TaskTypeSummarization:        model.QueueNLP,
	model.TaskTypeTopicExtraction:      model.QueueNLP,
	model.TaskTypeSpeakerIdentification: model.QueueNLP,
	model.TaskTypeYoutubeDownload:      model.QueueDownload,
	model.TaskTypeHealthCheck:          model.QueueUtility,
	model.TaskTypeGPUStats:             model.QueueUtility,
	model.TaskTypeRecoveryPass:         model.QueueUtility,
}

// RouteFor returns the queue a task type dispatches to. The second
// return value is false for any type outside the static table — callers
// must treat that as a configuration error, not silently drop the task.
func RouteFor(t model.TaskType) (model.Queue, bool) {
	q, ok := routingTable[t]
	return q, ok
}

// Job is one unit of work submitted to a queue.
type Job struct {
	TaskID string
	Run    func(ctx context.Context) error
}

// Stats reports a queue's current load.
type Stats struct {
	Pending   int
	Completed int64
	Failed    int64
}

// Pool is a single resource-class queue's worker pool.
type Pool struct {
	name     model.Queue
	jobs     chan Job
	workers  int
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64

	onFailure func(taskID string, err error)
}

// NewPool creates a worker pool for one queue. workers <= 0 resolves to
// runtime.NumCPU() (the CPU queue's "0 means autodetect" convention).
func NewPool(name model.Queue, workers, queueSize int, log zerolog.Logger, onFailure func(taskID string, err error)) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:      name,
		jobs:      make(chan Job, queueSize),
		workers:   workers,
		log:       log.With().Str("queue", string(name)).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		onFailure: onFailure,
	}
}

// Start launches the pool's worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.workers).Msg("queue pool started")
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("queue pool stopped")
}

// Enqueue submits a job. Returns false if the queue is full.
func (p *Pool) Enqueue(j Job) bool {
	select {
	case p.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats reports the pool's current load.
func (p *Pool) Stats() Stats {
	return Stats{
		Pending:   len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for job := range p.jobs {
		if err := job.Run(p.ctx); err != nil {
			p.failed.Add(1)
			log.Warn().Err(err).Str("task_id", job.TaskID).Msg("task failed")
			if p.onFailure != nil {
				p.onFailure(job.TaskID, err)
			}
		} else {
			p.completed.Add(1)
		}
	}
}

// Router owns one Pool per queue and dispatches jobs by static task type.
type Router struct {
	pools map[model.Queue]*Pool
}

// RouterConfig sets per-queue worker counts and the shared queue capacity.
type RouterConfig struct {
	GPUConcurrency      int
	DownloadConcurrency int
	CPUConcurrency      int
	NLPConcurrency      int
	UtilityConcurrency  int
	QueueSize           int
}

// NewRouter builds one Pool per resource class.
func NewRouter(cfg RouterConfig, log zerolog.Logger, onFailure func(taskID string, err error)) *Router {
	r := &Router{pools: make(map[model.Queue]*Pool, 5)}
	r.pools[model.QueueGPU] = NewPool(model.QueueGPU, cfg.GPUConcurrency, cfg.QueueSize, log, onFailure)
	r.pools[model.QueueDownload] = NewPool(model.QueueDownload, cfg.DownloadConcurrency, cfg.QueueSize, log, onFailure)
	r.pools[model.QueueCPU] = NewPool(model.QueueCPU, cfg.CPUConcurrency, cfg.QueueSize, log, onFailure)
	r.pools[model.QueueNLP] = NewPool(model.QueueNLP, cfg.NLPConcurrency, cfg.QueueSize, log, onFailure)
	r.pools[model.QueueUtility] = NewPool(model.QueueUtility, cfg.UtilityConcurrency, cfg.QueueSize, log, onFailure)
	return r
}

// Start launches every pool's workers.
func (r *Router) Start() {
	for _, p := range r.pools {
		p.Start()
	}
}

// Stop drains every pool.
func (r *Router) Stop() {
	for _, p := range r.pools {
		p.Stop()
	}
}

// Dispatch routes a task type to its queue and enqueues the job. Returns
// an error if the task type has no routing entry or its queue is full.
func (r *Router) Dispatch(taskType model.TaskType, j Job) error {
	q, ok := RouteFor(taskType)
	if !ok {
		return fmt.Errorf("queue: no route for task type %q", taskType)
	}
	pool, ok := r.pools[q]
	if !ok {
		return fmt.Errorf("queue: no pool for queue %q", q)
	}
	if !pool.Enqueue(j) {
		return fmt.Errorf("queue: %s is full", q)
	}
	return nil
}

// StatsFor reports a single queue's load, for the admin HTTP surface.
func (r *Router) StatsFor(q model.Queue) (Stats, bool) {
	p, ok := r.pools[q]
	if !ok {
		return Stats{}, false
	}
	return p.Stats(), true
}

// AllStats returns every queue's load, keyed by queue name.
func (r *Router) AllStats() map[model.Queue]Stats {
	out := make(map[model.Queue]Stats, len(r.pools))
	for q, p := range r.pools {
		out[q] = p.Stats()
	}
	return out
}
