package tasks

import "github.com/lumenprima/mediaplane/internal/model"

// knownTypes is the closed set of task types the engine will dispatch.
// Submitting anything outside this set is a caller bug, not a runtime
// routing decision: dispatch is a static, build-time registry rather
// than a dynamic string-keyed lookup.
var knownTypes = map[model.TaskType]bool{
	model.TaskTypeTranscription:         true,
	model.TaskTypeWaveform:              true,
	model.TaskTypeAnalytics:             true,
	model.TaskTypeSummarization:         true,
	model.TaskTypeTopicExtraction:       true,
	model.TaskTypeSpeakerIdentification: true,
	model.TaskTypeYoutubeDownload:       true,
	model.TaskTypeHealthCheck:           true,
	model.TaskTypeGPUStats:              true,
	model.TaskTypeRecoveryPass:          true,
}

// IsKnownType reports whether a task type is part of the static registry.
func IsKnownType(t model.TaskType) bool { return knownTypes[t] }
