// Package config loads control-plane configuration from a .env file,
// environment variables, and CLI overrides, in that priority order
// (lowest to highest).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config drives every component in the control plane. Each field's env
// tag names the environment variable it is read from.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"ADMIN_HTTP_ADDR" envDefault:":8090"` // health + metrics only, not a public API

	// LocalDir is the on-disk cache/primary store directory;
	// always in play, even with S3 configured, since TieredStore and
	// CachePruner both need a local directory to write into.
	LocalDir string `env:"LOCAL_STORAGE_DIR" envDefault:"./data/blobs"`

	// Recovery subsystem thresholds. The retry-count ceiling that gates
	// ORPHANED escalation lives in retrypolicy.Store instead (shared with
	// transcription retries), so it can change at runtime.
	StuckThresholdHours     float64       `env:"STUCK_THRESHOLD_HOURS" envDefault:"2"`
	AbandonedThresholdHours float64       `env:"ABANDONED_THRESHOLD_HOURS" envDefault:"1"`
	OrphanThresholdHours    float64       `env:"ORPHAN_THRESHOLD_HOURS" envDefault:"12"`
	RecoveryBeatInterval    time.Duration `env:"RECOVERY_BEAT_INTERVAL" envDefault:"10m"`

	// Speaker identity engine thresholds. Validate checks them, but
	// internal/speaker classifies scores with its own HighThreshold and
	// MediumThreshold constants (0.75/0.50) and does not read these fields.
	HighConfidence      float64 `env:"HIGH_CONFIDENCE" envDefault:"0.75"`
	MediumConfidence    float64 `env:"MEDIUM_CONFIDENCE" envDefault:"0.50"`
	EmbeddingDim        int     `env:"SPEAKER_EMBEDDING_DIM" envDefault:"512"`
	ProfileEmbeddingDim int     `env:"PROFILE_EMBEDDING_DIM" envDefault:"384"`

	// Queue Router concurrency.
	GPUConcurrency      int `env:"GPU_QUEUE_CONCURRENCY" envDefault:"1"`
	DownloadConcurrency int `env:"DOWNLOAD_QUEUE_CONCURRENCY" envDefault:"3"`
	CPUConcurrency      int `env:"CPU_QUEUE_CONCURRENCY" envDefault:"0"` // 0 = runtime.NumCPU()
	NLPConcurrency      int `env:"NLP_QUEUE_CONCURRENCY" envDefault:"4"`
	UtilityConcurrency  int `env:"UTILITY_QUEUE_CONCURRENCY" envDefault:"2"`
	QueueSize           int `env:"QUEUE_SIZE" envDefault:"500"`

	// Object storage.
	S3 S3Config

	// Transcription provider (the model-backend non-goal — the core
	// only calls through internal/providers.Transcriber). Empty URL
	// falls back to the deterministic fake provider.
	TranscriptionHTTPURL string `env:"TRANSCRIPTION_HTTP_URL"`
	TranscriptionModel   string `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`

	// Retry policy env vars. No component reads these fields:
	// retrypolicy.Store takes its values from system_settings and falls
	// back to its own Default* constants for any key never set there.
	TranscriptionMaxRetries            int  `env:"TRANSCRIPTION_MAX_RETRIES" envDefault:"3"`
	TranscriptionRetryLimitEnabled     bool `env:"TRANSCRIPTION_RETRY_LIMIT_ENABLED" envDefault:"true"`
	TranscriptionGarbageCleanupEnabled bool `env:"TRANSCRIPTION_GARBAGE_CLEANUP_ENABLED" envDefault:"true"`
	TranscriptionMaxWordLength         int  `env:"TRANSCRIPTION_MAX_WORD_LENGTH" envDefault:"50"`

	// Local override file for retrypolicy hot-reload (defense in depth
	// alongside the DB-backed store); empty disables the watch.
	RetryPolicyOverrideFile string `env:"RETRY_POLICY_OVERRIDE_FILE"`
}

// S3Config configures the Object Store backend.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
	PublicHost    string        `env:"S3_PUBLIC_HOST"` // rewrite internal host to this for presigned URLs

	// LocalCache enables tiered mode (local primary + S3 backup) rather
	// than S3-only; CacheRetention/CacheMaxGB bound the local cache the
	// CachePruner background service sweeps.
	LocalCache     bool          `env:"S3_LOCAL_CACHE" envDefault:"true"`
	CacheRetention time.Duration `env:"S3_CACHE_RETENTION" envDefault:"168h"`
	CacheMaxGB     int           `env:"S3_CACHE_MAX_GB" envDefault:"50"`

	// Async S3 backup write queue (tiered mode only): the local write
	// always happens inline, the S3 backup write never blocks it.
	UploadQueueSize int `env:"S3_UPLOAD_QUEUE_SIZE" envDefault:"500"`
	UploadWorkers   int `env:"S3_UPLOAD_WORKERS" envDefault:"2"`
}

// Enabled reports whether S3-backed object storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	HTTPAddr    string
}

// Load reads configuration from a .env file, environment variables, and
// CLI overrides. Priority: CLI flags > environment variables > .env file
// > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.RedisURL != "" {
		cfg.RedisURL = overrides.RedisURL
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}

	return cfg, nil
}

// Validate checks invariants that env.Parse alone can't express.
func (c *Config) Validate() error {
	if c.HighConfidence <= c.MediumConfidence {
		return fmt.Errorf("HIGH_CONFIDENCE (%.2f) must be greater than MEDIUM_CONFIDENCE (%.2f)", c.HighConfidence, c.MediumConfidence)
	}
	if c.S3.Enabled() && c.S3.AccessKey == "" {
		return fmt.Errorf("S3_BUCKET set but S3_ACCESS_KEY is empty")
	}
	return nil
}
