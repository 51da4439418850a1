package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

// parseDate reads a YYYY-MM-DD query value.
func parseDate(r *http.Request, key string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
