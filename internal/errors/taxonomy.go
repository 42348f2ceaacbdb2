// Package errors implements the categorized error taxonomy the control
// plane uses to present task failures to users and to decide
// whether the retry subsystem should schedule another attempt.
package errors

import (
	"strings"

	"github.com/lumenprima/mediaplane/internal/model"
)

// Category is one of the seven buckets a task failure classifies into.
type Category struct {
	Name        model.ErrorCategory
	Message     string
	Suggestions []string
	Retriable   bool
}

var categories = map[model.ErrorCategory]Category{
	model.ErrFileQuality: {
		Name:    model.ErrFileQuality,
		Message: "The uploaded file appears to be corrupted or in an unsupported format.",
		Suggestions: []string{
			"Re-export the file from its original source.",
			"Try a different audio/video format (e.g. MP3, WAV, MP4).",
			"Confirm the file plays correctly in a local media player before re-uploading.",
		},
		Retriable: false,
	},
	model.ErrNoSpeech: {
		Name:    model.ErrNoSpeech,
		Message: "No speech could be detected in this file.",
		Suggestions: []string{
			"Confirm the file actually contains spoken audio.",
			"Check that the audio track isn't silent or muted.",
		},
		Retriable: false,
	},
	model.ErrFormatIssue: {
		Name:    model.ErrFormatIssue,
		Message: "This file's codec or container could not be processed.",
		Suggestions: []string{
			"Re-encode to a widely supported codec (AAC, PCM, H.264).",
			"Avoid exotic or proprietary container formats.",
		},
		Retriable: false,
	},
	model.ErrNetworkError: {
		Name:    model.ErrNetworkError,
		Message: "A network error interrupted processing.",
		Suggestions: []string{
			"Check that the source URL is still reachable.",
			"Retry the upload; transient network issues usually clear up.",
		},
		Retriable: true,
	},
	model.ErrPermissionError: {
		Name:    model.ErrPermissionError,
		Message: "Access to this file or resource was denied.",
		Suggestions: []string{
			"Confirm the source isn't DRM-protected.",
			"Check sharing/visibility settings on the source URL.",
		},
		Retriable: false,
	},
	model.ErrProcessingError: {
		Name:    model.ErrProcessingError,
		Message: "Processing failed due to a server-side error.",
		Suggestions: []string{
			"Retry the upload.",
			"Contact support if the problem persists.",
		},
		Retriable: true,
	},
	model.ErrUnknown: {
		Name:    model.ErrUnknown,
		Message: "An unexpected error occurred while processing this file.",
		Suggestions: []string{
			"Retry the upload.",
			"Contact support if the problem persists.",
		},
		Retriable: true,
	},
}

// Lookup returns the Category for a taxonomy key, falling back to Unknown.
func Lookup(cat model.ErrorCategory) Category {
	if c, ok := categories[cat]; ok {
		return c
	}
	return categories[model.ErrUnknown]
}

// Classify maps a raw error (typically from a provider or transport call)
// to a taxonomy category by substring matching, mirroring the original's
// rule-table approach. It never panics and always returns a category.
func Classify(err error) Category {
	if err == nil {
		return Lookup(model.ErrUnknown)
	}
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "no speech", "empty transcript", "silence detected"):
		return Lookup(model.ErrNoSpeech)
	case containsAny(msg, "corrupt", "unsupported file", "undecodable", "invalid data found"):
		return Lookup(model.ErrFileQuality)
	case containsAny(msg, "codec", "container", "moov atom", "unsupported codec"):
		return Lookup(model.ErrFormatIssue)
	case containsAny(msg, "timeout", "connection refused", "no such host", "dial tcp", "context deadline exceeded", "unreachable"):
		return Lookup(model.ErrNetworkError)
	case containsAny(msg, "permission denied", "403", "401", "drm", "access denied"):
		return Lookup(model.ErrPermissionError)
	case containsAny(msg, "internal server error", "panic", "500"):
		return Lookup(model.ErrProcessingError)
	default:
		return Lookup(model.ErrUnknown)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Outcome classifies err and wraps it as a model.Outcome, the shape
// task handlers return instead of a bare error at task boundaries
//.
func Outcome(err error) model.Outcome {
	if err == nil {
		return model.Ok()
	}
	cat := Classify(err)
	return model.Err(cat.Name, err.Error(), cat.Retriable)
}
