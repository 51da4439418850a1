package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/therapymatch/internal/interval"
)

// busySlotStatuses are the FHIR Slot statuses that block a session.
const busySlotStatuses = "busy,busy-unavailable,busy-tentative"

// maxBundlePages bounds how many "next" links a single lookup follows.
const maxBundlePages = 20

// BusyLookback is how far before the window a busy Slot may start and still
// be found. Slot only supports searching on start, so blocks that begin
// earlier and run into the window need a widened lower bound.
const BusyLookback = 7 * 24 * time.Hour

// FHIRConfig holds configuration for an EHR FHIR endpoint.
type FHIRConfig struct {
	BaseURL      string // e.g. "https://fhir.example-ehr.com/api"
	ClientID     string // OAuth 2.0 client ID
	ClientSecret string // OAuth 2.0 client secret
	Scope        string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// FHIRReader reads busy Slot resources for a FHIR Schedule. Ref.ID is the
// Schedule id.
type FHIRReader struct {
	baseURL      string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewFHIRReader validates cfg and builds a reader.
func NewFHIRReader(cfg FHIRConfig) (*FHIRReader, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("calendar: fhir BaseURL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("calendar: fhir ClientID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("calendar: fhir ClientSecret is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	scope := cfg.Scope
	if scope == "" {
		scope = "system/Slot.read system/Schedule.read"
	}

	return &FHIRReader{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        scope,
		httpClient:   httpClient,
		now:          time.Now,
	}, nil
}

type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Link         []struct {
		Relation string `json:"relation"`
		URL      string `json:"url"`
	} `json:"link"`
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

type fhirSlot struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	Status       string `json:"status"` // free, busy, busy-unavailable, busy-tentative, entered-in-error
	Start        string `json:"start"`
	End          string `json:"end"`
}

// GetBusyIntervals queries GET /Slot?schedule=&start=ge..&start=lt..&status=busy,...
// and returns the merged busy intervals overlapping [start, end).
func (r *FHIRReader) GetBusyIntervals(ctx context.Context, ref Ref, start, end time.Time) ([]interval.Interval, error) {
	token, err := r.ensureAuthenticated(ctx)
	if err != nil {
		return nil, retrievalError("fhir auth", err)
	}

	params := url.Values{}
	params.Set("schedule", ref.ID)
	params.Add("start", "ge"+start.Add(-BusyLookback).UTC().Format(time.RFC3339))
	params.Add("start", "lt"+end.UTC().Format(time.RFC3339))
	params.Set("status", busySlotStatuses)
	next := fmt.Sprintf("%s/Slot?%s", r.baseURL, params.Encode())

	window := interval.New(start, end)
	var busy []interval.Interval
	for page := 0; next != "" && page < maxBundlePages; page++ {
		bundle, err := r.fetchBundle(ctx, token, next)
		if err != nil {
			return nil, retrievalError("fhir slot search", err)
		}
		for _, iv := range busyFromBundle(bundle) {
			if interval.Overlaps(iv, window) {
				busy = append(busy, iv)
			}
		}
		next = nextLink(bundle)
	}
	return interval.Merge(busy), nil
}

func (r *FHIRReader) fetchBundle(ctx context.Context, token, endpoint string) (fhirBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fhirBundle{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fhirBundle{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fhirBundle{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var bundle fhirBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return fhirBundle{}, fmt.Errorf("decode bundle: %w", err)
	}
	if bundle.ResourceType != "" && bundle.ResourceType != "Bundle" {
		return fhirBundle{}, fmt.Errorf("unexpected resourceType %q", bundle.ResourceType)
	}
	return bundle, nil
}

// busyFromBundle keeps Slot entries with a busy status and parseable times.
func busyFromBundle(bundle fhirBundle) []interval.Interval {
	out := make([]interval.Interval, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		var slot fhirSlot
		if err := json.Unmarshal(entry.Resource, &slot); err != nil {
			continue
		}
		if slot.ResourceType != "Slot" || !strings.HasPrefix(slot.Status, "busy") {
			continue
		}
		start, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, slot.End)
		if err != nil {
			continue
		}
		iv := interval.New(start, end)
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	return out
}

func nextLink(bundle fhirBundle) string {
	for _, link := range bundle.Link {
		if link.Relation == "next" {
			return link.URL
		}
	}
	return ""
}

// ensureAuthenticated returns a cached token, refreshing it five minutes
// before expiry.
func (r *FHIRReader) ensureAuthenticated(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && r.now().Add(5*time.Minute).Before(r.tokenExpiry) {
		return r.accessToken, nil
	}
	if err := r.authenticate(ctx); err != nil {
		return "", err
	}
	return r.accessToken, nil
}

// authenticate performs the OAuth 2.0 client credentials flow. Callers hold r.mu.
func (r *FHIRReader) authenticate(ctx context.Context) error {
	tokenURL := r.baseURL + "/connect/token"

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", r.clientID)
	data.Set("client_secret", r.clientSecret)
	data.Set("scope", r.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("auth failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("auth response missing access_token")
	}

	r.accessToken = tokenResp.AccessToken
	r.tokenExpiry = r.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return nil
}
