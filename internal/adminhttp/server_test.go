package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestNewMuxServesMetrics exercises the /metrics route without requiring
// a live database connection — /healthz needs a real *database.DB, which
// this package has no fake for (pgxpool.Pool isn't interface-shaped), so
// it's left to integration testing against a real Postgres instance.
func TestNewMuxServesMetrics(t *testing.T) {
	mux := NewMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics body")
	}
}
