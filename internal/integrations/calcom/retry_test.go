package calcom

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rateLimitedThenOK(failures int) (http.HandlerFunc, *atomic.Int32) {
	var hits atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if int(n) <= failures {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Too many requests"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"booking_references":[]}`))
	}, &hits
}

func TestDo_RetriesRateLimitUntilSuccess(t *testing.T) {
	handler, hits := rateLimitedThenOK(4)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	c := newTestClient(t, srv)
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }
	c.jitter = func() float64 { return 0.5 }

	_, err := c.ListBookingReferences(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(5), hits.Load(), "4 rate limited attempts plus the success")

	// backoff must be monotonically non-decreasing: 1s, 2s, 4s, 8s plus jitter
	require.Len(t, delays, 4)
	for i := 1; i < len(delays); i++ {
		require.GreaterOrEqual(t, delays[i], delays[i-1])
	}
	require.Equal(t, 1500*time.Millisecond, delays[0])
	require.Equal(t, 8500*time.Millisecond, delays[3])
}

func TestDo_RateLimitExhaustion(t *testing.T) {
	handler, hits := rateLimitedThenOK(999)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListBookingReferences(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(5), hits.Load(), "no sixth attempt after exhausting the budget")

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	require.Equal(t, 5, rateErr.Attempts)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestDo_NonRateLimitStatusNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListBookingReferences(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(1), hits.Load())

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestDo_TransportErrorNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newTestClient(t, srv)
	_, err := c.ListBookingReferences(context.Background())
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.False(t, errors.As(err, &statusErr), "transport failures carry no HTTP status")
}

func TestDo_ErrorURLOmitsCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetBooking(context.Background(), 42)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "cal_test_key")
}

func TestDo_BodyReplayedOnRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `"startTime"`)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Too many requests"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":101}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	raw, err := c.UpdateBooking(context.Background(), 101, "2026-09-02T10:00:00Z", "2026-09-02T10:30:00Z")
	require.NoError(t, err)
	require.Contains(t, string(raw), `"id":101`)
	require.Equal(t, int32(2), hits.Load())
}
