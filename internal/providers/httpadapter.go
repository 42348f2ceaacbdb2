package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPTranscriber POSTs the raw audio bytes (model and language in the
// X-Model and X-Language headers) to a transcription endpoint and decodes
// its JSON {text, language, duration, words} reply behind the Transcriber
// interface, wrapped in a circuit
// breaker so a wedged transcription backend doesn't pin every
// GPU-queue worker in a blocking HTTP call.
type HTTPTranscriber struct {
	url     string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker

	// fetch loads raw audio bytes for a storage key; supplied by the
	// caller so this adapter doesn't need to import internal/storage.
	fetch func(ctx context.Context, audioKey string) (io.ReadCloser, error)
}

func NewHTTPTranscriber(url, model string, timeout time.Duration, fetch func(ctx context.Context, audioKey string) (io.ReadCloser, error)) *HTTPTranscriber {
	return &HTTPTranscriber{
		url:     url,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(BreakerSettings("transcription-http")),
		fetch:   fetch,
	}
}

func (h *HTTPTranscriber) Capabilities() Capabilities {
	return Capabilities{Name: "http", Model: h.model, SupportsLanguage: true, SupportsWordTimes: true}
}

func (h *HTTPTranscriber) Transcribe(ctx context.Context, audioKey, language string) (TranscriptionResult, error) {
	result, err := h.breaker.Execute(func() (interface{}, error) {
		return h.transcribe(ctx, audioKey, language)
	})
	if err != nil {
		return TranscriptionResult{}, err
	}
	return result.(TranscriptionResult), nil
}

func (h *HTTPTranscriber) transcribe(ctx context.Context, audioKey, language string) (TranscriptionResult, error) {
	body, err := h.fetch(ctx, audioKey)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: fetch audio: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: read audio: %w", err)
	}

	lang := language
	if lang == "" {
		lang = "en"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Model", h.model)
	req.Header.Set("X-Language", lang)

	resp, err := h.client.Do(req)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return TranscriptionResult{}, fmt.Errorf("providers: transcription backend returned %d: %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
		Words    []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return TranscriptionResult{}, fmt.Errorf("providers: decode response: %w", err)
	}

	words := make([]TranscriptWord, len(parsed.Words))
	for i, w := range parsed.Words {
		words[i] = TranscriptWord{Word: w.Word, Start: w.Start, End: w.End}
	}
	return TranscriptionResult{
		Text:     parsed.Text,
		Language: parsed.Language,
		Duration: parsed.Duration,
		Words:    words,
	}, nil
}
