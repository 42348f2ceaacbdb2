package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestBus(t *testing.T) (*RedisBus, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewRedisBus(client, zerolog.Nop())
	return bus, func() {
		client.Close()
		mr.Close()
	}
}

func TestPublishSubscribeFiltersByUser(t *testing.T) {
	bus, cleanup := newTestBus(t)
	defer cleanup()

	ctx := context.Background()
	ch, cancel := bus.Subscribe(ctx, 42)
	defer cancel()

	time.Sleep(20 * time.Millisecond) // let the subscription register

	Notify(ctx, bus, 42, EventTranscriptionStatus, "file-abc", map[string]any{"progress": 50})
	Notify(ctx, bus, 99, EventTranscriptionStatus, "file-xyz", map[string]any{"progress": 10})

	select {
	case env := <-ch:
		if env.UserID != 42 {
			t.Fatalf("got envelope for user %d, want 42", env.UserID)
		}
		if env.Data["file_id"] != "file-abc" {
			t.Errorf("file_id = %v, want file-abc", env.Data["file_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}

	select {
	case env := <-ch:
		t.Fatalf("received unexpected second envelope: %+v", env)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus, cleanup := newTestBus(t)
	defer cleanup()

	ctx := context.Background()
	ch, cancel := bus.Subscribe(ctx, 7)
	cancel()

	Notify(ctx, bus, 7, EventFileCreated, "file-1", nil)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after cancel, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestProgressMessage(t *testing.T) {
	tests := []struct {
		typ  EventType
		prog float64
		want string
	}{
		{EventTranscriptionStatus, 0.5, "Transcription 50% complete"},
		{EventDownloadProgress, 1.0, "Download 100% complete"},
	}
	for _, tt := range tests {
		if got := ProgressMessage(tt.typ, tt.prog); got != tt.want {
			t.Errorf("ProgressMessage(%s, %v) = %q, want %q", tt.typ, tt.prog, got, tt.want)
		}
	}
}
