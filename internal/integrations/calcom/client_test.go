package calcom

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"booking-agent/internal/domain"
)

// fakeGetter is a minimal paramstore getter stub for use within this package.
type fakeGetter struct {
	val string
	err error
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"cal_test_key"}`},
		"/booking-agent",
		1202446,
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	c.sleep = func(time.Duration) {}
	c.jitter = func() float64 { return 0 }
	return c
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/booking-agent", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyPrefix(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, " ", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")
}

func TestNewClient_BadEventType(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, "/booking-agent", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "event type")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(&fakeGetter{}, "/booking-agent", 1)
	require.NoError(t, err)
	require.Equal(t, "https://api.cal.com/v1", c.baseURL)
}

// ---------------------------------------------------------------------------
// CreateBooking
// ---------------------------------------------------------------------------

func TestCreateBooking_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bookings", r.URL.Path)
		require.Equal(t, "cal_test_key", r.URL.Query().Get("apiKey"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, "2026-09-01T10:00:00+02:00", payload["start"])
		require.Equal(t, float64(1202446), payload["eventTypeId"])
		require.Equal(t, "Europe/Berlin", payload["timeZone"])
		responses := payload["responses"].(map[string]any)
		require.Equal(t, "Ada", responses["name"])
		require.Equal(t, "ada@example.com", responses["email"])
		require.Equal(t, "Project sync", responses["notes"])
		require.Equal(t, map[string]any{}, payload["metadata"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 101,
			"startTime": "2026-09-01T08:00:00Z",
			"endTime": "2026-09-01T08:30:00Z",
			"status": "CONFIRMED",
			"metadata": {"videoCallUrl": "https://meet.example.com/abc"}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	booking, err := c.CreateBooking(context.Background(), bookingPayload())
	require.NoError(t, err)
	require.Equal(t, int64(101), booking.ID)
	require.Equal(t, "https://meet.example.com/abc", booking.Metadata.VideoCallURL)
}

func TestCreateBooking_ErrorCarriesServiceMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid event length"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.CreateBooking(context.Background(), bookingPayload())
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Equal(t, "Invalid event length", statusErr.Message())
}

func TestCreateBooking_KeyFetchError(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: io.ErrUnexpectedEOF}, "/booking-agent", 1)
	require.NoError(t, err)
	_, err = c.CreateBooking(context.Background(), bookingPayload())
	require.Error(t, err)
	require.ErrorContains(t, err, "fetch token")
}

// ---------------------------------------------------------------------------
// ListBookingReferences / GetBooking
// ---------------------------------------------------------------------------

func TestListBookingReferences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/booking-references", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"booking_references":[
			{"id": 1, "bookingId": 101, "deleted": null},
			{"id": 2, "bookingId": 102, "deleted": true}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	refs, err := c.ListBookingReferences(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.False(t, refs[0].IsDeleted())
	require.True(t, refs[1].IsDeleted())
}

func TestGetBooking_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bookings/101", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"booking":{
			"id": 101,
			"status": "CONFIRMED",
			"startTime": "2026-09-01T08:00:00Z",
			"endTime": "2026-09-01T08:30:00Z",
			"attendees": [{"name":"Ada","email":"ada@example.com","timeZone":"Europe/Berlin","locale":"de"}]
		}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	booking, err := c.GetBooking(context.Background(), 101)
	require.NoError(t, err)
	require.Equal(t, int64(101), booking.ID)
	require.Len(t, booking.Attendees, 1)
	require.Equal(t, "Europe/Berlin", booking.Attendees[0].TimeZone)
}

// ---------------------------------------------------------------------------
// CancelBooking / DeleteBookingReference / UpdateBooking
// ---------------------------------------------------------------------------

func TestCancelBooking_WithReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/bookings/101/cancel", r.URL.Path)
		require.Equal(t, "Double booked", r.URL.Query().Get("cancellationReason"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.CancelBooking(context.Background(), 101, "Double booked"))
}

func TestCancelBooking_NoReasonOmitsParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has := r.URL.Query()["cancellationReason"]
		require.False(t, has)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.CancelBooking(context.Background(), 101, "  "))
}

func TestDeleteBookingReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/booking-references/7", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	require.NoError(t, c.DeleteBookingReference(context.Background(), 7))
}

func TestUpdateBooking_PatchesTimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/bookings/101", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"startTime":"2026-09-02T10:00:00+02:00","endTime":"2026-09-02T10:30:00+02:00"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":101,"startTime":"2026-09-02T08:00:00Z"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	raw, err := c.UpdateBooking(context.Background(), 101, "2026-09-02T10:00:00+02:00", "2026-09-02T10:30:00+02:00")
	require.NoError(t, err)
	require.Contains(t, string(raw), `"id":101`)
}

func bookingPayload() domain.CreateBookingPayload {
	return domain.CreateBookingPayload{
		Start:    "2026-09-01T10:00:00+02:00",
		End:      "2026-09-01T10:30:00+02:00",
		Name:     "Ada",
		Email:    "ada@example.com",
		Notes:    "Project sync",
		TimeZone: "Europe/Berlin",
		Language: "en",
	}
}
