package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name          string
		allowed       []string
		method        string
		origin        string
		preflight     bool
		wantOrigin    string
		wantStatus    int
		wantNextCalls bool
	}{
		{name: "listed origin", allowed: []string{"https://app.example"}, method: http.MethodGet, origin: "https://app.example", wantOrigin: "https://app.example", wantStatus: http.StatusOK, wantNextCalls: true},
		{name: "listed origin with trailing slash in config", allowed: []string{"https://app.example/"}, method: http.MethodGet, origin: "https://app.example", wantOrigin: "https://app.example", wantStatus: http.StatusOK, wantNextCalls: true},
		{name: "unknown origin", allowed: []string{"https://app.example"}, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK, wantNextCalls: true},
		{name: "wildcard", allowed: []string{"*"}, method: http.MethodGet, origin: "https://any.example", wantOrigin: "https://any.example", wantStatus: http.StatusOK, wantNextCalls: true},
		{name: "no origin header", allowed: []string{"*"}, method: http.MethodGet, wantStatus: http.StatusOK, wantNextCalls: true},
		{name: "preflight", allowed: []string{"https://app.example"}, method: http.MethodOptions, origin: "https://app.example", preflight: true, wantOrigin: "https://app.example", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/v1/providers/p1/slots", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantNextCalls, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
			}
		})
	}
}
