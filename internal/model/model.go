// Package model holds the entity types shared across the control plane:
// users, media files, tasks, transcript segments, and the speaker identity
// graph. Query logic lives in internal/database; this package only defines
// shape and the small set of pure invariant checks that don't need a
// database handle.
package model

import "time"

// Role is a User's access level. Authorization itself is out of scope
// (spec non-goal); the core only needs to know who owns what.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User owns every other entity except SystemSetting.
type User struct {
	ID         int64
	ExternalID string
	Role       Role
	Active     bool
}

// FileStatus is MediaFile's lifecycle state.
type FileStatus string

const (
	FileStatusPending    FileStatus = "PENDING"
	FileStatusProcessing FileStatus = "PROCESSING"
	FileStatusCompleted  FileStatus = "COMPLETED"
	FileStatusError      FileStatus = "ERROR"
	FileStatusCancelling FileStatus = "CANCELLING"
	FileStatusCancelled  FileStatus = "CANCELLED"
	FileStatusOrphaned   FileStatus = "ORPHANED"
)

// MediaFile is the root of the per-file ownership tree: transcript
// segments, per-file speakers, topic suggestions, and derived blobs all
// cascade from it. Tasks reference it weakly.
type MediaFile struct {
	ID            int64
	ExternalID    string
	UserID        int64
	Filename      string
	BlobKey       string
	ByteSize      int64
	Duration      *float64 // seconds, nullable
	ContentType   string
	Title         string
	Author        string
	Description   string
	SourceURL     string
	Status        FileStatus
	FileHash      string

	RecoveryAttempts     int
	ForceDeleteEligible  bool
	LastErrorMessage     string
	UploadTime           time.Time
	TaskStartedAt        *time.Time
	CompletedAt          *time.Time
	LastRecoveryAttempt  *time.Time

	WaveformData    map[string][]float32 // resolution-key -> samples
	ThumbnailPath   string
	MetadataRaw     map[string]any
	MetadataImportant map[string]any
}

// Valid reports whether s is one of the seven defined lifecycle states.
// The transition table itself lives in internal/lifecycle; MediaFile
// stays a plain data holder.
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusPending, FileStatusProcessing, FileStatusCompleted,
		FileStatusError, FileStatusCancelling, FileStatusCancelled, FileStatusOrphaned:
		return true
	default:
		return false
	}
}

// TaskType enumerates the stages the Task Graph Engine can dispatch.
// Dispatch is a static, build-time registry —
// unknown types are rejected by internal/tasks, not looked up dynamically.
type TaskType string

const (
	TaskTypeTranscription        TaskType = "transcription"
	TaskTypeWaveform             TaskType = "waveform"
	TaskTypeAnalytics            TaskType = "analytics"
	TaskTypeSummarization        TaskType = "summarization"
	TaskTypeTopicExtraction      TaskType = "topic_extraction"
	TaskTypeSpeakerIdentification TaskType = "speaker_identification"
	TaskTypeYoutubeDownload      TaskType = "youtube_download"
	TaskTypeHealthCheck          TaskType = "health_check"
	TaskTypeGPUStats             TaskType = "gpu_stats"
	TaskTypeRecoveryPass         TaskType = "recovery_pass"
)

// Queue names the resource-class queue a TaskType routes to.
type Queue string

const (
	QueueGPU      Queue = "gpu"
	QueueDownload Queue = "download"
	QueueCPU      Queue = "cpu"
	QueueNLP      Queue = "nlp"
	QueueUtility  Queue = "utility"
)

// TaskStatus is a Task record's lifecycle state.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task mirrors every submitted job. Tasks are terminal records:
// deleting a MediaFile does not delete its Tasks.
type Task struct {
	ID           string
	UserID       int64
	MediaFileID  *int64
	Type         TaskType
	Status       TaskStatus
	Progress     float64
	Result       []byte
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// TranscriptSegment is owned exclusively by its MediaFile.
type TranscriptSegment struct {
	ID          int64
	MediaFileID int64
	SpeakerID   *int64
	StartTime   float64
	EndTime     float64
	Text        string
	Confidence  float64
}

// Speaker is a per-file diarization instance. ProfileID is a weak,
// index-only reference into SpeakerProfile — never ownership.
type Speaker struct {
	ID            int64
	MediaFileID   int64
	UserID        int64
	Name          string // original diarization label, e.g. SPEAKER_01
	DisplayName   string
	SuggestedName string
	Confidence    float64
	Verified      bool
	ProfileID     *int64
}

// SpeakerProfile is a user-owned consolidated voice cluster. It owns
// nothing; Speakers resolve to it by ProfileID lookup.
type SpeakerProfile struct {
	ID                   int64
	UserID               int64
	Name                 string
	Description          string
	EmbeddingCount        int
	LastEmbeddingUpdate   *time.Time
}

// SpeakerMatch is an unordered pair stored with Speaker1ID < Speaker2ID
// (invariant I4), at most one row per pair.
type SpeakerMatch struct {
	Speaker1ID int64
	Speaker2ID int64
	Confidence float64
	UpdatedAt  time.Time
}

// NewSpeakerMatch builds a SpeakerMatch enforcing the ordering invariant.
func NewSpeakerMatch(a, b int64, confidence float64, now time.Time) (SpeakerMatch, bool) {
	if a == b {
		return SpeakerMatch{}, false
	}
	if a > b {
		a, b = b, a
	}
	return SpeakerMatch{Speaker1ID: a, Speaker2ID: b, Confidence: confidence, UpdatedAt: now}, true
}

// TopicSuggestionStatus tracks whether a user has acted on suggestions.
type TopicSuggestionStatus string

const (
	TopicSuggestionPending  TopicSuggestionStatus = "pending"
	TopicSuggestionRejected TopicSuggestionStatus = "rejected"
)

// TopicSuggestion holds NLP-derived tag/collection suggestions for a file.
type TopicSuggestion struct {
	ID                    int64
	MediaFileID           int64
	SuggestedTags         []string
	SuggestedCollections  []string
	Status                TopicSuggestionStatus
	UserDecisions         map[string]string
}

// SystemSetting is a runtime-adjustable key/value pair consulted through
// internal/retrypolicy's typed accessors — never read directly at task
// time without going through that store.
type SystemSetting struct {
	Key         string
	Value       string
	Description string
}
