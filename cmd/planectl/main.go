// Command planectl is an operator CLI over the control plane's
// Relational Store: table counts, task/file inspection, and retry
// policy reads/writes, for diagnosing a running deployment without a
// public API. Replaces cmd/dbcheck's raw-pool count/investigate/fix
// commands with the same os.Args subcommand dispatch, rebuilt on
// internal/database's typed queries instead of dbcheck's inline SQL.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/config"
	"github.com/lumenprima/mediaplane/internal/database"
	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/retrypolicy"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if len(os.Args) < 2 {
		fmt.Println("usage: planectl <counts|tasks|files|retry|recovery-dry-run> [args...]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "counts":
		runCounts(ctx, db)
	case "tasks":
		runTasks(ctx, db, os.Args[2:])
	case "files":
		runFiles(ctx, db, os.Args[2:])
	case "retry":
		runRetry(ctx, db, log, os.Args[2:])
	case "recovery-dry-run":
		runRecoveryDryRun(ctx, db, cfg)
	default:
		fmt.Fprintf(os.Stderr, "planectl: unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}

// runCounts prints a row count per core table, the same shape
// cmd/dbcheck's default mode used for the radio-domain tables.
func runCounts(ctx context.Context, db *database.DB) {
	tables := []string{
		"users", "media_files", "tasks",
		"transcript_segments", "speakers", "speaker_profiles",
		"speaker_matches", "topic_suggestions", "embeddings",
		"system_settings",
	}
	fmt.Println("Table                    Count")
	fmt.Println("─────────────────────────────────")
	for _, t := range tables {
		var count int64
		if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM "+t).Scan(&count); err != nil {
			fmt.Printf("%-25s (error: %v)\n", t, err)
			continue
		}
		fmt.Printf("%-25s %d\n", t, count)
	}
}

// runTasks lists tasks, optionally filtered by status (e.g. "in_progress", "failed").
func runTasks(ctx context.Context, db *database.DB, args []string) {
	filter := database.TaskFilter{Limit: 50}
	if len(args) > 0 {
		status := model.TaskStatus(args[0])
		filter.Status = &status
	}
	tasks, err := db.ListTasks(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planectl: list tasks: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%-36s %-24s %-12s %-8s\n", "ID", "Type", "Status", "Progress")
	for _, t := range tasks {
		fmt.Printf("%-36s %-24s %-12s %.2f\n", t.ID, t.Type, t.Status, t.Progress)
	}
}

// runFiles lists media files in a given status, or stuck/abandoned
// candidates past the configured thresholds when the subcommand is
// "stuck" or "abandoned".
func runFiles(ctx context.Context, db *database.DB, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: planectl files <status|stuck|abandoned> [threshold-hours]")
		os.Exit(1)
	}

	switch args[0] {
	case "stuck":
		cutoff := thresholdCutoff(args, 2)
		tasks, err := db.ListStuckTasks(ctx, cutoff)
		must(err)
		fmt.Printf("%d task(s) pending/in_progress before %s\n", len(tasks), cutoff.Format(time.RFC3339))
		for _, t := range tasks {
			fmt.Printf("  %s  %s\n", t.ID, t.Type)
		}
	case "abandoned":
		cutoff := thresholdCutoff(args, 1)
		files, err := db.ListAbandonedCandidates(ctx, cutoff)
		must(err)
		fmt.Printf("%d file(s) in PROCESSING before %s\n", len(files), cutoff.Format(time.RFC3339))
		for _, f := range files {
			fmt.Printf("  %d  %s  attempts=%d\n", f.ID, f.ExternalID, f.RecoveryAttempts)
		}
	default:
		status := model.FileStatus(args[0])
		files, err := db.ListMediaFiles(ctx, database.MediaFileFilter{Status: &status, Limit: 50})
		must(err)
		fmt.Printf("%d file(s) with status %s\n", len(files), status)
		for _, f := range files {
			fmt.Printf("  %d  %s\n", f.ID, f.ExternalID)
		}
	}
}

func thresholdCutoff(args []string, defaultHours float64) time.Time {
	hours := defaultHours
	if len(args) > 1 {
		if h, err := strconv.ParseFloat(args[1], 64); err == nil {
			hours = h
		}
	}
	return time.Now().Add(-time.Duration(hours * float64(time.Hour)))
}

// runRetry reads or writes a retry policy setting. Writes go straight to
// the database — this process doesn't hold the live Store, so they take
// effect on the next daemon Load or override-file tick.
func runRetry(ctx context.Context, db *database.DB, log zerolog.Logger, args []string) {
	store := retrypolicy.NewStore(db, log)
	if err := store.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "planectl: load retry policy: %v\n", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		fmt.Printf("%s = %d\n", retrypolicy.KeyTranscriptionMaxRetries, store.MaxRetries())
		fmt.Printf("%s = %t\n", retrypolicy.KeyTranscriptionRetryLimitEnabled, store.RetryLimitEnabled())
		fmt.Printf("%s = %t\n", retrypolicy.KeyTranscriptionGarbageCleanup, store.GarbageCleanupEnabled())
		fmt.Printf("%s = %d\n", retrypolicy.KeyTranscriptionMaxWordLength, store.MaxWordLength())
		return
	}

	if len(args) != 3 || args[0] != "set" {
		fmt.Fprintln(os.Stderr, "usage: planectl retry set <key> <value>")
		os.Exit(1)
	}
	key, value := args[1], args[2]
	if n, err := strconv.Atoi(value); err == nil {
		must(store.SetInt(ctx, key, n))
	} else if b, err := strconv.ParseBool(value); err == nil {
		must(store.SetBool(ctx, key, b))
	} else {
		fmt.Fprintf(os.Stderr, "planectl: value %q is neither an int nor a bool\n", value)
		os.Exit(1)
	}
	fmt.Printf("%s = %s\n", key, value)
}

// runRecoveryDryRun reports what a recovery pass would find without
// applying any transition — the same dry-run-by-default shape
// cmd/dbcheck's fix-dupes/fix-unresolved subcommands use, requiring an
// explicit "apply" argument that this read-only report never accepts.
func runRecoveryDryRun(ctx context.Context, db *database.DB, cfg *config.Config) {
	stuckCutoff := time.Now().Add(-time.Duration(cfg.StuckThresholdHours * float64(time.Hour)))
	abandonedCutoff := time.Now().Add(-time.Duration(cfg.AbandonedThresholdHours * float64(time.Hour)))
	orphanCutoff := time.Now().Add(-time.Duration(cfg.OrphanThresholdHours * float64(time.Hour)))

	stuck, err := db.ListStuckTasks(ctx, stuckCutoff)
	must(err)
	abandoned, err := db.ListAbandonedCandidates(ctx, abandonedCutoff)
	must(err)
	orphaned, err := db.ListOrphanedOlderThan(ctx, orphanCutoff)
	must(err)

	fmt.Printf("stuck tasks (older than %.1fh):       %d\n", cfg.StuckThresholdHours, len(stuck))
	fmt.Printf("abandoned-candidate files (>%.1fh):    %d\n", cfg.AbandonedThresholdHours, len(abandoned))
	fmt.Printf("orphaned files past sweep (>%.1fh):    %d\n", cfg.OrphanThresholdHours, len(orphaned))
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "planectl: %v\n", err)
		os.Exit(1)
	}
}
