package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotFoundHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.Handle("/reservations", HandleSubmitBid(&stubBidService{}))
	mux.Handle("/", NotFoundHandler())

	tests := []struct {
		method  string
		path    string
		message string
	}{
		{http.MethodGet, "/missing", "no route for GET /missing"},
		{http.MethodPost, "/holds", "no route for POST /holds"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected status 404, got %d", tt.method, tt.path, rec.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Code != codeNotFound {
			t.Fatalf("expected code %s, got %s", codeNotFound, resp.Code)
		}
		if resp.Error != tt.message {
			t.Fatalf("expected message %q, got %q", tt.message, resp.Error)
		}
	}
}
