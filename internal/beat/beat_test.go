package beat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRegisterRejectsIncompleteJob(t *testing.T) {
	b := New(zerolog.Nop())
	tests := []Job{
		{Name: "", Schedule: "@every 1s", Run: func(context.Context) error { return nil }},
		{Name: "x", Schedule: "", Run: func(context.Context) error { return nil }},
		{Name: "x", Schedule: "@every 1s", Run: nil},
	}
	for _, j := range tests {
		if err := b.Register(j); err == nil {
			t.Errorf("Register(%+v) should have failed", j)
		}
	}
}

func TestExecuteSkipsOverlappingFire(t *testing.T) {
	b := New(zerolog.Nop())
	var running, concurrent int32

	release := make(chan struct{})
	j := Job{
		Name:     "slow",
		Schedule: "@every 1h",
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&running, 1) > 1 {
				atomic.AddInt32(&concurrent, 1)
			}
			defer atomic.AddInt32(&running, -1)
			<-release
			return nil
		},
	}

	go b.execute(context.Background(), j)
	time.Sleep(20 * time.Millisecond) // let the first fire claim the lock

	// second fire while the first is still blocked on release
	b.execute(context.Background(), j)

	close(release)
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&concurrent) != 0 {
		t.Error("expected the second fire to be skipped while the first was running")
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	b := New(zerolog.Nop())
	j := Job{
		Name:     "panicky",
		Schedule: "@every 1h",
		Run: func(ctx context.Context) error {
			panic("boom")
		},
	}
	// must not propagate the panic to the test
	b.execute(context.Background(), j)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running["panicky"] {
		t.Error("running flag should have been cleared after the panic")
	}
}
