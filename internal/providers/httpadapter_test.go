package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fakeFetch(ctx context.Context, audioKey string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("fake-audio-bytes")), nil
}

func TestHTTPTranscriberSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello","language":"en","duration":3.5,"words":[{"word":"hello","start":0,"end":0.5}]}`))
	}))
	defer srv.Close()

	ht := NewHTTPTranscriber(srv.URL, "test-model", 5*time.Second, fakeFetch)
	res, err := ht.Transcribe(context.Background(), "audio/key.wav", "")
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q, want hello", res.Text)
	}
	if len(res.Words) != 1 || res.Words[0].Word != "hello" {
		t.Errorf("unexpected words: %+v", res.Words)
	}
}

func TestHTTPTranscriberBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	ht := NewHTTPTranscriber(srv.URL, "test-model", 5*time.Second, fakeFetch)
	_, err := ht.Transcribe(context.Background(), "audio/key.wav", "")
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestHTTPTranscriberCapabilities(t *testing.T) {
	ht := NewHTTPTranscriber("http://example.invalid", "my-model", time.Second, fakeFetch)
	caps := ht.Capabilities()
	if caps.Model != "my-model" {
		t.Errorf("Model = %q, want my-model", caps.Model)
	}
	if !caps.SupportsWordTimes {
		t.Error("expected SupportsWordTimes = true")
	}
}
