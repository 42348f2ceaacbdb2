// Package notify is the Notification Bus:
// a single-topic pub/sub channel carrying JSON envelopes fanned out by
// user_id. Publishers fire-and-forget; delivery failures are logged, not
// propagated, since progress is monotone and loss is safe by design.
//
// Transport is Redis pub/sub (go-redis/v9). Each subscriber gets its own
// goroutine reading off the shared topic with client-side user_id
// filtering; a slow subscriber has its event dropped rather than
// blocking the publisher.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/metrics"
)

const topic = "notifications"

// EventType is one of the fixed notification kinds the core emits.
type EventType string

const (
	EventFileCreated            EventType = "file_created"
	EventTranscriptionStatus    EventType = "transcription_status"
	EventSummarizationStatus    EventType = "summarization_status"
	EventTopicExtractionStatus  EventType = "topic_extraction_status"
	EventYoutubeProcessingStatus EventType = "youtube_processing_status"
	EventDownloadProgress        EventType = "download_progress"
	EventSpeakerMatch            EventType = "speaker_match"
)

// Envelope is the wire shape published on the single "notifications" topic.
type Envelope struct {
	UserID int64          `json:"user_id"`
	Type   EventType      `json:"type"`
	Data   map[string]any `json:"data"`
}

// Bus is the interface task code depends on, so it can be faked in tests
// without a Redis connection.
type Bus interface {
	Publish(ctx context.Context, env Envelope)
	Subscribe(ctx context.Context, userID int64) (<-chan Envelope, func())
}

// RedisBus implements Bus over a single Redis pub/sub channel, filtering
// client-side by user_id (Redis pub/sub has no server-side filter, and
// per-user channels would mean one Redis subscription per connected
// client).
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisBus(client *redis.Client, log zerolog.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

// Publish fire-and-forgets an envelope onto the shared topic. Delivery
// failures are logged and swallowed; they never fail the originating task.
func (b *RedisBus) Publish(ctx context.Context, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Str("type", string(env.Type)).Msg("notify: marshal envelope")
		return
	}
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("type", string(env.Type)).Msg("notify: publish failed")
	}
}

// Subscribe returns a channel of envelopes addressed to userID, and a
// cancel function that unsubscribes and closes the channel. Slow
// consumers have events dropped rather than blocking the dispatch loop,
// matching eventbus.go's subscriber semantics.
func (b *RedisBus) Subscribe(ctx context.Context, userID int64) (<-chan Envelope, func()) {
	pubsub := b.client.Subscribe(ctx, topic)
	out := make(chan Envelope, 64)

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn().Err(err).Msg("notify: malformed envelope")
					continue
				}
				if env.UserID != userID {
					continue
				}
				select {
				case out <- env:
				default:
					b.log.Debug().Int64("user_id", userID).Msg("notify: slow subscriber, dropping event")
				}
			}
		}
	}()

	return out, func() {
		cancel()
		_ = pubsub.Close()
	}
}

// Notify builds an Envelope from loosely-typed fields and publishes it —
// the call shape task code actually uses, so callers don't construct
// Envelope literals at every call site.
func Notify(ctx context.Context, bus Bus, userID int64, typ EventType, fileExternalID string, fields map[string]any) {
	data := map[string]any{"file_id": fileExternalID}
	for k, v := range fields {
		data[k] = v
	}
	bus.Publish(ctx, Envelope{UserID: userID, Type: typ, Data: data})
	metrics.NotificationsPublishedTotal.Inc()
}

// ProgressMessage renders a human-readable status line for a given event
// type and a task's progress fraction (0..1, per Task.Progress
// scale), used as the envelope's "message" field when callers don't
// supply their own.
func ProgressMessage(typ EventType, progress float64) string {
	pct := int(progress * 100)
	switch typ {
	case EventTranscriptionStatus:
		return fmt.Sprintf("Transcription %d%% complete", pct)
	case EventDownloadProgress:
		return fmt.Sprintf("Download %d%% complete", pct)
	default:
		return fmt.Sprintf("%s: %d%%", typ, pct)
	}
}
