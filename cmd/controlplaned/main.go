// Command controlplaned is the media-processing control plane daemon:
// it owns the Queue Router, Task Graph Engine, Media File Lifecycle
// State Machine, Recovery Subsystem, Speaker Identity Engine, and the
// fixed beat schedule, exposing only a health/metrics surface over
// HTTP. Startup shape: flags → config → logger → graceful-shutdown
// context → database → storage → background services → serve → wait
// for signal → bounded shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/adminhttp"
	"github.com/lumenprima/mediaplane/internal/analytics"
	"github.com/lumenprima/mediaplane/internal/beat"
	"github.com/lumenprima/mediaplane/internal/config"
	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/errors"
	"github.com/lumenprima/mediaplane/internal/lifecycle"
	"github.com/lumenprima/mediaplane/internal/metrics"
	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/notify"
	"github.com/lumenprima/mediaplane/internal/providers"
	"github.com/lumenprima/mediaplane/internal/queue"
	"github.com/lumenprima/mediaplane/internal/recovery"
	"github.com/lumenprima/mediaplane/internal/retrypolicy"
	"github.com/lumenprima/mediaplane/internal/speaker"
	"github.com/lumenprima/mediaplane/internal/storage"
	"github.com/lumenprima/mediaplane/internal/tasks"
	"github.com/lumenprima/mediaplane/internal/vectorindex"
	"github.com/lumenprima/mediaplane/internal/waveform"
)

// outcomeFromErr classifies a raw provider/storage error into a
// model.Outcome via the error taxonomy, instead of every TaskFunc
// hand-picking an ErrorCategory.
func outcomeFromErr(err error) model.Outcome {
	cat := errors.Classify(err)
	return model.Err(cat.Name, err.Error(), cat.Retriable)
}

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "Admin HTTP listen address (overrides ADMIN_HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.RedisURL, "redis-url", "", "Redis connection URL (overrides REDIS_URL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("log_level", level.String()).
		Msg("controlplaned starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Relational Store
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed (run ALTER TABLE manually or grant ALTER privileges)")
	}

	// Notification Bus
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	bus := notify.NewRedisBus(redisClient, log.With().Str("component", "notify").Logger())

	// Object Store
	store, bgServices, err := storage.New(cfg.S3, cfg.LocalDir, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}
	for _, svc := range bgServices {
		svc.Start()
		defer svc.Stop()
	}
	log.Info().Str("type", store.Type()).Msg("object storage initialized")

	// Vector Index + Speaker Identity Engine
	index := vectorindex.NewPGIndex(db.Pool)
	embedder := &providers.FakeEmbedder{Dim: cfg.EmbeddingDim}
	speakerEngine := speaker.NewEngine(db, index, embedder, log.With().Str("component", "speaker").Logger())

	// Transcription provider: an HTTP-backed adapter when configured,
	// the deterministic fake otherwise (the model-backend non-goal —
	// the core only depends on the providers.Transcriber interface).
	transcriber := providers.Transcriber(&providers.FakeTranscriber{})
	fetchAudio := func(ctx context.Context, audioKey string) (io.ReadCloser, error) {
		return store.Get(ctx, audioKey)
	}
	if cfg.TranscriptionHTTPURL != "" {
		transcriber = providers.NewHTTPTranscriber(cfg.TranscriptionHTTPURL, cfg.TranscriptionModel, 5*time.Minute, fetchAudio)
	}

	// The rest of the model boundary: diarization, forced alignment,
	// audio decode for waveform generation, and the LLM used for
	// summarization/topic-extraction/speaker-name suggestion. All are
	// non-goal model backends, so the deterministic fakes stand in
	// until a real HTTP-backed adapter is configured.
	diarizer := providers.Diarizer(&providers.FakeDiarizer{})
	aligner := providers.Aligner(&providers.FakeAligner{})
	decoder := providers.Decoder(&providers.FakeDecoder{})
	llm := providers.LLM(&providers.FakeLLM{})

	// Retry Policy Store
	retryStore := retrypolicy.NewStore(db, log.With().Str("component", "retrypolicy").Logger())
	if err := retryStore.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load retry policy from database")
	}
	if cfg.RetryPolicyOverrideFile != "" {
		if err := retryStore.WatchOverrideFile(ctx, cfg.RetryPolicyOverrideFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.RetryPolicyOverrideFile).Msg("retrypolicy: override file watch failed, continuing without it")
		} else {
			defer retryStore.Stop()
		}
	}

	// Queue Router + Task Graph Engine
	router := queue.NewRouter(queue.RouterConfig{
		GPUConcurrency:      cfg.GPUConcurrency,
		DownloadConcurrency: cfg.DownloadConcurrency,
		CPUConcurrency:      cfg.CPUConcurrency,
		NLPConcurrency:      cfg.NLPConcurrency,
		UtilityConcurrency:  cfg.UtilityConcurrency,
		QueueSize:           cfg.QueueSize,
	}, log.With().Str("component", "queue").Logger(), func(taskID string, taskErr error) {
		log.Warn().Str("task_id", taskID).Err(taskErr).Msg("task failed, onFailure hook fired")
	})
	router.Start()
	defer router.Stop()

	engine := tasks.NewEngine(db, router, bus, log.With().Str("component", "tasks").Logger())

	// Media File Lifecycle State Machine
	machine := lifecycle.NewMachine(db, log.With().Str("component", "lifecycle").Logger(), time.Duration(cfg.OrphanThresholdHours*float64(time.Hour)))

	// Recovery Subsystem: a fresh transcription task for a recovered
	// file, running the real provider pipeline and handing diarized
	// speakers to the Speaker Identity Engine just like a first-pass
	// submission would.
	resubmit := func(ctx context.Context, userID, mediaFileID int64) error {
		id := mediaFileID
		_, err := engine.Submit(ctx, userID, &id, model.TaskTypeTranscription, func(ctx context.Context) ([]byte, model.Outcome) {
			mf, err := db.GetMediaFile(ctx, mediaFileID)
			if err != nil {
				return nil, outcomeFromErr(err)
			}
			result, err := transcriber.Transcribe(ctx, mf.BlobKey, "")
			if err != nil {
				return nil, outcomeFromErr(err)
			}
			diarized, err := diarizer.Diarize(ctx, mf.BlobKey)
			if err != nil {
				return nil, outcomeFromErr(err)
			}

			words := result.Words
			if len(words) == 0 {
				aligned, err := aligner.Align(ctx, mf.BlobKey, result.Text)
				if err != nil {
					return nil, outcomeFromErr(err)
				}
				words = make([]providers.TranscriptWord, len(aligned))
				for i, w := range aligned {
					words[i] = providers.TranscriptWord{Word: w.Text, Start: w.Start, End: w.End}
				}
			}

			segments, err := buildTranscriptSegments(ctx, db, userID, mediaFileID, diarized, words)
			if err != nil {
				return nil, outcomeFromErr(err)
			}
			if err := db.ReplaceTranscriptSegments(ctx, mediaFileID, segments); err != nil {
				return nil, outcomeFromErr(err)
			}

			if err := speakerEngine.ProcessFile(ctx, mediaFileID); err != nil {
				log.Warn().Err(err).Int64("media_file_id", mediaFileID).Msg("recovery: speaker processing failed, transcription still succeeds")
			}
			return []byte(result.Text), model.Ok()
		})
		return err
	}
	// Post-transcription fan-out: waveform, analytics, summarization,
	// topic extraction, and best-effort speaker-name suggestion all
	// dispatch off of engine.run's CompleteTask hook rather than any
	// caller needing to know about them individually.
	engine.SetStageGraph(func(ctx context.Context, userID, mediaFileID int64) []tasks.ChainSpec {
		return []tasks.ChainSpec{
			{Type: model.TaskTypeWaveform, Fn: makeWaveformTask(db, decoder, mediaFileID)},
			{Type: model.TaskTypeAnalytics, Fn: makeAnalyticsTask(db, mediaFileID)},
			{Type: model.TaskTypeSummarization, Fn: makeSummarizationTask(db, llm, mediaFileID)},
			{Type: model.TaskTypeTopicExtraction, Fn: makeTopicExtractionTask(db, llm, mediaFileID)},
			{Type: model.TaskTypeSpeakerIdentification, Fn: makeSpeakerIdentificationTask(db, llm, log, mediaFileID)},
		}
	})

	recoveryCfg := recovery.Config{
		StuckThreshold:     time.Duration(cfg.StuckThresholdHours * float64(time.Hour)),
		AbandonedThreshold: time.Duration(cfg.AbandonedThresholdHours * float64(time.Hour)),
		LockTTL:            9 * time.Minute,
	}
	recoverer := recovery.NewRecoverer(db, redisClient, machine, resubmit, retryStore, recoveryCfg, log.With().Str("component", "recovery").Logger())

	// Orphaned work from before this process existed has no live worker
	// behind it; reconcile it before the beat scheduler (and thus RunPass)
	// ever gets a chance to run, so nothing serves traffic against tasks
	// that died with the last process.
	if err := recoverer.BootReconcile(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run boot-time recovery reconciliation")
	}

	// Beat: the three always-on background jobs
	scheduler := beat.New(log.With().Str("component", "beat").Logger())
	must(scheduler.Register(beat.Job{
		Name:     beat.JobHealthCheck,
		Schedule: beat.ScheduleHealthCheck,
		Run:      func(ctx context.Context) error { return db.HealthCheck(ctx) },
	}), &log)
	must(scheduler.Register(beat.Job{
		Name:     beat.JobGPUStats,
		Schedule: beat.ScheduleGPUStats,
		Run:      func(ctx context.Context) error { return nil }, // GPU stats are sourced from the provider layer, a non-goal here
	}), &log)
	must(scheduler.Register(beat.Job{
		Name:     beat.JobRecoveryPass,
		Schedule: fmt.Sprintf("@every %s", cfg.RecoveryBeatInterval),
		Run:      recoverer.RunPass,
	}), &log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start beat scheduler")
	}
	defer scheduler.Stop()

	// Admin HTTP: health + metrics only (the non-goal carve-out)
	collector := metrics.NewCollector(db.Pool, router, recoverer, retryStore)
	prometheus.MustRegister(collector)

	health := adminhttp.NewHealthHandler(db, redisClient, startTime)
	mux := adminhttp.NewMux(health)
	adminSrv := adminhttp.NewServer(cfg.HTTPAddr, mux, log)
	adminSrv.Start()

	log.Info().
		Str("listen", cfg.HTTPAddr).
		Str("version", version).
		Dur("startup_ms", time.Since(startTime)).
		Msg("controlplaned ready")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("adminhttp shutdown error")
	}

	log.Info().Msg("controlplaned stopped")
}

func must(err error, log *zerolog.Logger) {
	if err != nil {
		log.Fatal().Err(err).Msg("beat: failed to register job")
	}
}

// buildTranscriptSegments assigns each aligned word to the diarized
// speaker segment whose time range contains its start, creating one
// Speaker row per distinct diarization label along the way. Diarized
// ranges with no aligned words (silence, or a decoder/aligner mismatch)
// are dropped rather than persisted empty.
func buildTranscriptSegments(ctx context.Context, db *database.DB, userID, mediaFileID int64, diarized []providers.DiarizedSegment, words []providers.TranscriptWord) ([]model.TranscriptSegment, error) {
	speakerIDs := make(map[string]int64, len(diarized))
	segments := make([]model.TranscriptSegment, 0, len(diarized))

	for _, d := range diarized {
		speakerID, ok := speakerIDs[d.SpeakerLabel]
		if !ok {
			id, err := db.CreateSpeaker(ctx, &model.Speaker{
				MediaFileID: mediaFileID,
				UserID:      userID,
				Name:        d.SpeakerLabel,
				DisplayName: d.SpeakerLabel,
			})
			if err != nil {
				return nil, err
			}
			speakerID = id
			speakerIDs[d.SpeakerLabel] = id
		}

		var text []string
		for _, w := range words {
			if w.Start >= d.Start && w.Start < d.End {
				text = append(text, w.Word)
			}
		}
		if len(text) == 0 {
			continue
		}

		sid := speakerID
		segments = append(segments, model.TranscriptSegment{
			MediaFileID: mediaFileID,
			SpeakerID:   &sid,
			StartTime:   d.Start,
			EndTime:     d.End,
			Text:        strings.Join(text, " "),
			Confidence:  1.0,
		})
	}
	return segments, nil
}

// makeWaveformTask decodes the file's audio once through the Decoder
// boundary and stores every Resolutions bucket waveform.Generate
// produces.
func makeWaveformTask(db *database.DB, decoder providers.Decoder, mediaFileID int64) tasks.TaskFunc {
	return func(ctx context.Context) ([]byte, model.Outcome) {
		mf, err := db.GetMediaFile(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		samples, sampleRate, err := decoder.Decode(ctx, mf.BlobKey)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		resolutions, err := waveform.Generate(samples, sampleRate)
		if err != nil {
			return nil, outcomeFromErr(err)
		}

		out := make(map[string][]float32, len(resolutions))
		for name, data := range resolutions {
			bucket := make([]float32, len(data.Samples))
			for i, s := range data.Samples {
				bucket[i] = float32(s)
			}
			out[name] = bucket
		}
		if err := db.SetWaveform(ctx, mediaFileID, out); err != nil {
			return nil, outcomeFromErr(err)
		}
		return nil, model.Ok()
	}
}

// makeAnalyticsTask computes the conversation-statistics report from
// already-persisted transcript segments and stores it as the task's
// result payload.
func makeAnalyticsTask(db *database.DB, mediaFileID int64) tasks.TaskFunc {
	return func(ctx context.Context) ([]byte, model.Outcome) {
		mf, err := db.GetMediaFile(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		segments, err := db.ListTranscriptSegments(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		speakers, err := db.ListSpeakersByMediaFile(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}

		names := make(map[int64]string, len(speakers))
		for _, s := range speakers {
			names[s.ID] = speakerDisplayLabel(s)
		}

		var duration float64
		if mf.Duration != nil {
			duration = *mf.Duration
		}

		report := analytics.Compute(segments, names, duration)
		payload, err := json.Marshal(report)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		return payload, model.Ok()
	}
}

// makeSummarizationTask asks the LLM for a short summary of the
// transcript and stores it on MediaFile.Description, the column the
// full-text search index is generated from.
func makeSummarizationTask(db *database.DB, llm providers.LLM, mediaFileID int64) tasks.TaskFunc {
	return func(ctx context.Context) ([]byte, model.Outcome) {
		segments, err := db.ListTranscriptSegments(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		summary, err := llm.Complete(ctx, []providers.ChatMessage{
			{Role: "system", Content: "Summarize the following transcript in 2-3 sentences."},
			{Role: "user", Content: transcriptText(segments)},
		})
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		if err := db.SetDescription(ctx, mediaFileID, summary); err != nil {
			return nil, outcomeFromErr(err)
		}
		return []byte(summary), model.Ok()
	}
}

// makeTopicExtractionTask asks the LLM for a short list of topic tags
// and records them as a pending TopicSuggestion for user review.
func makeTopicExtractionTask(db *database.DB, llm providers.LLM, mediaFileID int64) tasks.TaskFunc {
	return func(ctx context.Context) ([]byte, model.Outcome) {
		segments, err := db.ListTranscriptSegments(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		raw, err := llm.Complete(ctx, []providers.ChatMessage{
			{Role: "system", Content: "List up to 5 short topic tags for this transcript, comma-separated."},
			{Role: "user", Content: transcriptText(segments)},
		})
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		id, err := db.CreateTopicSuggestion(ctx, mediaFileID, splitTags(raw), nil)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		return []byte(fmt.Sprintf("%d", id)), model.Ok()
	}
}

// makeSpeakerIdentificationTask asks the LLM to suggest a display name
// or role for each unverified speaker, from that speaker's own lines.
// Best-effort: a single speaker's LLM call failing only skips that
// speaker, it never fails the task as a whole.
func makeSpeakerIdentificationTask(db *database.DB, llm providers.LLM, log zerolog.Logger, mediaFileID int64) tasks.TaskFunc {
	return func(ctx context.Context) ([]byte, model.Outcome) {
		speakers, err := db.ListSpeakersByMediaFile(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}
		segments, err := db.ListTranscriptSegments(ctx, mediaFileID)
		if err != nil {
			return nil, outcomeFromErr(err)
		}

		var suggested int
		for _, s := range speakers {
			if s.Verified {
				continue
			}
			sample := textForSpeaker(segments, s.ID)
			if sample == "" {
				continue
			}
			name, err := llm.Complete(ctx, []providers.ChatMessage{
				{Role: "system", Content: "Suggest a likely display name or role for this speaker based on what they say. Respond with just the name or role, nothing else."},
				{Role: "user", Content: sample},
			})
			if err != nil {
				log.Warn().Err(err).Int64("speaker_id", s.ID).Msg("speaker_identification: LLM suggestion failed, skipping speaker")
				continue
			}
			if err := db.SetSuggestedName(ctx, s.ID, strings.TrimSpace(name), 0.5); err != nil {
				log.Warn().Err(err).Int64("speaker_id", s.ID).Msg("speaker_identification: failed to persist suggested name")
				continue
			}
			suggested++
		}
		return []byte(fmt.Sprintf("%d", suggested)), model.Ok()
	}
}

// speakerDisplayLabel prefers a verified display name, falls back to an
// LLM-suggested one, and otherwise the raw diarization label.
func speakerDisplayLabel(s model.Speaker) string {
	if s.Verified && s.DisplayName != "" {
		return s.DisplayName
	}
	if s.SuggestedName != "" {
		return s.SuggestedName
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// transcriptText concatenates segment text in order, for prompts that
// want the whole transcript as one block.
func transcriptText(segments []model.TranscriptSegment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// textForSpeaker concatenates only the segments attributed to speakerID.
func textForSpeaker(segments []model.TranscriptSegment, speakerID int64) string {
	var parts []string
	for _, s := range segments {
		if s.SpeakerID != nil && *s.SpeakerID == speakerID {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// splitTags turns a comma-separated LLM response into a trimmed,
// non-empty tag list.
func splitTags(raw string) []string {
	fields := strings.Split(raw, ",")
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
