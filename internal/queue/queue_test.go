package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/model"
)

func TestRouteForStaticTable(t *testing.T) {
	tests := []struct {
		typ  model.TaskType
		want model.Queue
	}{
		{model.TaskTypeTranscription, model.QueueGPU},
		{model.TaskTypeWaveform, model.QueueCPU},
		{model.TaskTypeSummarization, model.QueueNLP},
		{model.TaskTypeYoutubeDownload, model.QueueDownload},
		{model.TaskTypeHealthCheck, model.QueueUtility},
	}
	for _, tt := range tests {
		got, ok := RouteFor(tt.typ)
		if !ok {
			t.Fatalf("RouteFor(%s): no route", tt.typ)
		}
		if got != tt.want {
			t.Errorf("RouteFor(%s) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestRouteForUnknownType(t *testing.T) {
	if _, ok := RouteFor(model.TaskType("nonexistent")); ok {
		t.Error("RouteFor(unknown) should report false")
	}
}

func TestPoolRunsJobsAndTracksStats(t *testing.T) {
	var mu sync.Mutex
	var failures []string

	p := NewPool(model.QueueCPU, 2, 10, zerolog.Nop(), func(taskID string, err error) {
		mu.Lock()
		failures = append(failures, taskID)
		mu.Unlock()
	})
	p.Start()

	var done sync.WaitGroup
	done.Add(3)
	for i := 0; i < 2; i++ {
		if !p.Enqueue(Job{TaskID: "ok", Run: func(ctx context.Context) error {
			defer done.Done()
			return nil
		}}) {
			t.Fatal("enqueue failed")
		}
	}
	if !p.Enqueue(Job{TaskID: "bad", Run: func(ctx context.Context) error {
		defer done.Done()
		return errors.New("boom")
	}}) {
		t.Fatal("enqueue failed")
	}

	done.Wait()
	p.Stop()

	stats := p.Stats()
	if stats.Completed != 2 {
		t.Errorf("Completed = %d, want 2", stats.Completed)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 1 || failures[0] != "bad" {
		t.Errorf("failures = %v, want [bad]", failures)
	}
}

func TestPoolEnqueueFullReturnsFalse(t *testing.T) {
	p := NewPool(model.QueueGPU, 0, 1, zerolog.Nop(), nil) // workers=0 -> NumCPU, but queueSize=1 still caps the buffer
	block := make(chan struct{})
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	// Fill the channel buffer directly so Enqueue's non-blocking send fails
	// regardless of how many workers are draining it.
	filled := 0
	for p.Enqueue(Job{TaskID: "filler", Run: func(ctx context.Context) error {
		<-block
		return nil
	}}) {
		filled++
		if filled > 10000 {
			t.Fatal("queue never reported full")
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(RouterConfig{
		GPUConcurrency: 1, DownloadConcurrency: 1, CPUConcurrency: 1,
		NLPConcurrency: 1, UtilityConcurrency: 1, QueueSize: 10,
	}, zerolog.Nop(), nil)
	r.Start()
	defer r.Stop()

	done := make(chan struct{})
	err := r.Dispatch(model.TaskTypeTranscription, Job{TaskID: "t1", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}

	if err := r.Dispatch(model.TaskType("nope"), Job{TaskID: "x"}); err == nil {
		t.Error("expected error for unrouted task type")
	}
}

func TestRouterAllStats(t *testing.T) {
	r := NewRouter(RouterConfig{
		GPUConcurrency: 1, DownloadConcurrency: 1, CPUConcurrency: 1,
		NLPConcurrency: 1, UtilityConcurrency: 1, QueueSize: 10,
	}, zerolog.Nop(), nil)

	stats := r.AllStats()
	for _, q := range []model.Queue{model.QueueGPU, model.QueueDownload, model.QueueCPU, model.QueueNLP, model.QueueUtility} {
		if _, ok := stats[q]; !ok {
			t.Errorf("AllStats missing queue %s", q)
		}
	}
}
