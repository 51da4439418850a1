package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch/internal/interval"
)

func TestRouterDispatchesByKind(t *testing.T) {
	fhir := &countingReader{busy: []interval.Interval{interval.New(cacheStart, cacheStart.Add(time.Hour))}}
	google := &countingReader{}
	router := NewRouter(map[string]Reader{KindFHIR: fhir, "Google": google, "unused": nil})

	busy, err := router.GetBusyIntervals(context.Background(), Ref{Kind: "FHIR", ID: "s"}, cacheStart, cacheEnd)
	require.NoError(t, err)
	assert.Len(t, busy, 1)
	assert.Equal(t, 1, fhir.calls)

	_, err = router.GetBusyIntervals(context.Background(), Ref{Kind: KindGoogle, ID: "s"}, cacheStart, cacheEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, google.calls)

	_, err = router.GetBusyIntervals(context.Background(), Ref{Kind: "outlook", ID: "s"}, cacheStart, cacheEnd)
	assert.ErrorIs(t, err, ErrRetrievalFailed)

	_, err = router.GetBusyIntervals(context.Background(), Ref{Kind: "unused", ID: "s"}, cacheStart, cacheEnd)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestRetrievalErrorWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := retrievalError("fhir", cause)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, cause)
}

func TestRefHelpers(t *testing.T) {
	assert.True(t, Ref{}.IsZero())
	assert.False(t, Ref{Kind: KindFHIR, ID: "1"}.IsZero())
	assert.Equal(t, "fhir:1", Ref{Kind: KindFHIR, ID: "1"}.String())
}
