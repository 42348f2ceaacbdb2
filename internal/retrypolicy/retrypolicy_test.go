package retrypolicy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore() *Store {
	return &Store{log: zerolog.Nop(), vals: make(map[string]string)}
}

func TestIntFallsBackToDefaultWhenUnset(t *testing.T) {
	s := newTestStore()
	if got := s.Int("missing.key", 42); got != 42 {
		t.Errorf("Int = %d, want default 42", got)
	}
}

func TestIntFallsBackOnUnparsableValue(t *testing.T) {
	s := newTestStore()
	s.vals["bad"] = "not-a-number"
	if got := s.Int("bad", 7); got != 7 {
		t.Errorf("Int = %d, want default 7", got)
	}
}

func TestBoolFallsBackToDefaultWhenUnset(t *testing.T) {
	s := newTestStore()
	if got := s.Bool("missing.key", true); got != true {
		t.Error("Bool should fall back to default true")
	}
}

func TestMaxRetriesAndShouldRetry(t *testing.T) {
	s := newTestStore()
	if got := s.MaxRetries(); got != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default %d", got, DefaultMaxRetries)
	}
	if !s.ShouldRetry(0) {
		t.Error("should retry below max_retries")
	}
	if s.ShouldRetry(DefaultMaxRetries) {
		t.Error("should not retry at max_retries")
	}

	s.vals[KeyTranscriptionRetryLimitEnabled] = "false"
	if !s.ShouldRetry(999) {
		t.Error("disabling the limit should always allow retry")
	}
}

func TestApplyOverrideFile(t *testing.T) {
	s := newTestStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")

	ov := overrideFile{
		Ints:  map[string]int{KeyTranscriptionMaxRetries: 9},
		Bools: map[string]bool{KeyTranscriptionGarbageCleanup: false},
	}
	raw, err := json.Marshal(ov)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.overridePath = path

	s.applyOverrideFile()

	if got := s.MaxRetries(); got != 9 {
		t.Errorf("MaxRetries after override = %d, want 9", got)
	}
	if s.GarbageCleanupEnabled() {
		t.Error("GarbageCleanupEnabled should be false after override")
	}
}

func TestApplyOverrideFileIgnoresMalformedContent(t *testing.T) {
	s := newTestStore()
	s.vals[KeyTranscriptionMaxRetries] = "5"
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.overridePath = path

	s.applyOverrideFile()

	if got := s.MaxRetries(); got != 5 {
		t.Errorf("malformed override should leave existing value untouched, got %d", got)
	}
}

// sanity check the test helper's zero-value Store doesn't deadlock on
// concurrent reads while unused fields (watcher, cancel) stay nil.
func TestStoreZeroValueSafeToRead(t *testing.T) {
	s := newTestStore()
	done := make(chan struct{})
	go func() {
		_ = s.Int("x", 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Int call deadlocked")
	}
}
