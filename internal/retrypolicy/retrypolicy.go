// Package retrypolicy is the Retry Policy Store: typed accessors over
// the Relational Store's system_settings table, with an in-memory cache
// invalidated by an optional override file watched via fsnotify.
package retrypolicy

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/database"
)

// Keys the core consults.
const (
	KeyTranscriptionMaxRetries        = "transcription.max_retries"
	KeyTranscriptionRetryLimitEnabled = "transcription.retry_limit_enabled"
	KeyTranscriptionGarbageCleanup    = "transcription.garbage_cleanup_enabled"
	KeyTranscriptionMaxWordLength     = "transcription.max_word_length"
)

// Defaults, used when a key has never been set in system_settings.
const (
	DefaultMaxRetries        = 3
	DefaultRetryLimitEnabled = true
	DefaultGarbageCleanup    = true
	DefaultMaxWordLength     = 50
)

// Store is a cached, typed view over system_settings. Reads hit the
// cache; SetInt/SetBool write through to the database and update the
// cache in the same call.
type Store struct {
	db   *database.DB
	log  zerolog.Logger
	mu   sync.RWMutex
	vals map[string]string

	overridePath string
	watcher      *fsnotify.Watcher
	cancel       func()
}

func NewStore(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log, vals: make(map[string]string)}
}

// Load populates the in-memory cache from the database. Call once at
// startup and again after any out-of-band change.
func (s *Store) Load(ctx context.Context) error {
	settings, err := s.db.ListSystemSettings(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals = make(map[string]string, len(settings))
	for _, set := range settings {
		s.vals[set.Key] = set.Value
	}
	return nil
}

// Int returns key's value as an int, falling back to def if unset or
// unparsable.
func (s *Store) Int(key string, def int) int {
	s.mu.RLock()
	raw, ok := s.vals[key]
	s.mu.RUnlock()
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", raw).Msg("retrypolicy: non-integer setting, using default")
		return def
	}
	return n
}

// Bool returns key's value as a bool, falling back to def if unset or
// unparsable.
func (s *Store) Bool(key string, def bool) bool {
	s.mu.RLock()
	raw, ok := s.vals[key]
	s.mu.RUnlock()
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", raw).Msg("retrypolicy: non-boolean setting, using default")
		return def
	}
	return b
}

// SetInt writes an integer setting through to the database and cache.
func (s *Store) SetInt(ctx context.Context, key string, value int) error {
	return s.set(ctx, key, strconv.Itoa(value))
}

// SetBool writes a boolean setting through to the database and cache.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	return s.set(ctx, key, strconv.FormatBool(value))
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.db.SetSystemSetting(ctx, key, value, ""); err != nil {
		return err
	}
	s.mu.Lock()
	s.vals[key] = value
	s.mu.Unlock()
	return nil
}

// MaxRetries, RetryLimitEnabled, GarbageCleanupEnabled, and
// MaxWordLength are the four typed accessors the core consults.
func (s *Store) MaxRetries() int             { return s.Int(KeyTranscriptionMaxRetries, DefaultMaxRetries) }
func (s *Store) RetryLimitEnabled() bool     { return s.Bool(KeyTranscriptionRetryLimitEnabled, DefaultRetryLimitEnabled) }
func (s *Store) GarbageCleanupEnabled() bool { return s.Bool(KeyTranscriptionGarbageCleanup, DefaultGarbageCleanup) }
func (s *Store) MaxWordLength() int          { return s.Int(KeyTranscriptionMaxWordLength, DefaultMaxWordLength) }

// ShouldRetry implements should_retry(retry_count) formula:
// !limit_enabled || retry_count < max_retries.
func (s *Store) ShouldRetry(retryCount int) bool {
	return !s.RetryLimitEnabled() || retryCount < s.MaxRetries()
}

// overrideFile is the on-disk shape an operator can drop beside the
// running daemon to force settings without touching the database —
// useful when the database itself is the thing misbehaving.
type overrideFile struct {
	Ints  map[string]int  `json:"ints"`
	Bools map[string]bool `json:"bools"`
}

// WatchOverrideFile watches path for changes and applies its contents to
// the in-memory cache on every write, without touching the database.
// Call Stop to release the watcher.
func (s *Store) WatchOverrideFile(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	s.overridePath = path

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.applyOverrideFile() // pick up whatever's there at startup

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.applyOverrideFile()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Error().Err(err).Msg("retrypolicy: override file watch error")
			}
		}
	}()
	return nil
}

func (s *Store) applyOverrideFile() {
	raw, err := os.ReadFile(s.overridePath)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.overridePath).Msg("retrypolicy: failed to read override file")
		return
	}
	var ov overrideFile
	if err := json.Unmarshal(raw, &ov); err != nil {
		s.log.Warn().Err(err).Str("path", s.overridePath).Msg("retrypolicy: malformed override file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range ov.Ints {
		s.vals[k] = strconv.Itoa(v)
	}
	for k, v := range ov.Bools {
		s.vals[k] = strconv.FormatBool(v)
	}
	s.log.Info().Str("path", s.overridePath).Msg("retrypolicy: override file applied")
}

// Stop releases the override file watcher, if one is running.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
}
