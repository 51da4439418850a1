package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/therapymatch/internal/interval"
)

// GoogleConfig configures the Google Calendar reader.
type GoogleConfig struct {
	CredentialsFile string
	// Endpoint and HTTPClient override the API target, mostly for tests.
	Endpoint   string
	HTTPClient *http.Client
}

// GoogleReader reads busy time via the Calendar FreeBusy API. Ref.ID is the
// calendar id (usually the provider's email address).
type GoogleReader struct {
	svc *gcal.Service
}

func NewGoogleReader(ctx context.Context, cfg GoogleConfig) (*GoogleReader, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gcal.CalendarReadonlyScope))
	default:
		return nil, fmt.Errorf("calendar: google CredentialsFile is required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return &GoogleReader{svc: svc}, nil
}

func (g *GoogleReader) GetBusyIntervals(ctx context.Context, ref Ref, start, end time.Time) ([]interval.Interval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: ref.ID}},
	}
	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, retrievalError("google freebusy", err)
	}

	cal, ok := resp.Calendars[ref.ID]
	if !ok {
		return nil, retrievalError("google freebusy", fmt.Errorf("calendar %q missing from response", ref.ID))
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Domain+"/"+e.Reason)
		}
		return nil, retrievalError("google freebusy", fmt.Errorf("calendar %q: %s", ref.ID, strings.Join(reasons, ", ")))
	}

	busy := make([]interval.Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		s, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, retrievalError("google freebusy", fmt.Errorf("parse busy start: %w", err))
		}
		e, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, retrievalError("google freebusy", fmt.Errorf("parse busy end: %w", err))
		}
		busy = append(busy, interval.New(s, e))
	}
	return interval.Merge(busy), nil
}
