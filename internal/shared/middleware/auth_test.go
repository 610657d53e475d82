package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finlink/internal/shared/auth"
)

func TestAPIToken(t *testing.T) {
	hash, err := auth.HashToken("s3cret-token")
	if err != nil {
		t.Fatalf("HashToken() failed: %v", err)
	}
	handler := APIToken(hash)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "Valid Token", header: "Bearer s3cret-token", expectedStatus: http.StatusOK},
		{name: "Valid Token Cached", header: "Bearer s3cret-token", expectedStatus: http.StatusOK},
		{name: "No Header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "Wrong Scheme", header: "Basic s3cret-token", expectedStatus: http.StatusUnauthorized},
		{name: "Missing Token", header: "Bearer ", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Token", header: "Bearer invalid", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/connections", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "Generated", incoming: ""},
		{name: "Propagated", incoming: "abc-123", wantSame: true},
		{name: "Oversized replaced", incoming: strings.Repeat("x", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if seen == "" || rr.Header().Get("X-Request-ID") != seen {
				t.Fatalf("request id %q not echoed (header %q)", seen, rr.Header().Get("X-Request-ID"))
			}
			if tt.wantSame && seen != tt.incoming {
				t.Errorf("request id = %q, want %q", seen, tt.incoming)
			}
			if !tt.wantSame && seen == tt.incoming {
				t.Errorf("request id %q was not replaced", seen)
			}
		})
	}
}
