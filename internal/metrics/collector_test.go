package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/queue"
)

type fakeQueueStats struct {
	stats map[model.Queue]queue.Stats
}

func (f fakeQueueStats) AllStats() map[model.Queue]queue.Stats { return f.stats }

type fakeRecoveryStats struct {
	lastRun, lastN int64
}

func (f fakeRecoveryStats) Stats() (int64, int64) { return f.lastRun, f.lastN }

type fakeRetryStats struct {
	max int
}

func (f fakeRetryStats) MaxRetries() int { return f.max }

func TestCollectorReportsQueueDepth(t *testing.T) {
	qs := fakeQueueStats{stats: map[model.Queue]queue.Stats{
		model.QueueGPU: {Pending: 3, Completed: 10, Failed: 1},
	}}
	c := NewCollector(nil, qs, fakeRecoveryStats{}, fakeRetryStats{})

	if n := testutil.CollectAndCount(c); n == 0 {
		t.Fatal("expected at least one metric from Collect")
	}
}

func TestCollectorHandlesNilDependencies(t *testing.T) {
	c := NewCollector(nil, nil, nil, nil)
	if n := testutil.CollectAndCount(c); n == 0 {
		t.Fatal("expected metrics even with all nil dependencies")
	}
}
