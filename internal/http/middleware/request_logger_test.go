package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch/pkg/logging"
)

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seenID string
	handler := RequestLogger(logging.NewWithWriter(&buf, "info"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/providers/missing/slots", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))

	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	var line map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, float64(http.StatusNotFound), line["status"])
	assert.Equal(t, seenID, line["request_id"])
	assert.Equal(t, "/v1/providers/missing/slots", line["path"])
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	handler := RequestLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusOK, rec.Code)
}
