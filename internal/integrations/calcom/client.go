package calcom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"booking-agent/internal/domain"
	"booking-agent/internal/integrations/paramstore"
)

// Getter is the parameter retrieval interface required by Client.
// *paramstore.Client satisfies this interface.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses from the booking API with
// status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("calcom: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Message extracts the "message" field from the error response body, or
// returns "Unknown error" when the body is not the expected JSON shape.
func (e *HTTPStatusError) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err != nil || payload.Message == "" {
		return "Unknown error"
	}
	return payload.Message
}

// RateLimitError is returned when a call keeps hitting HTTP 429 until the
// retry budget is exhausted.
type RateLimitError struct {
	Attempts int
	Last     *HTTPStatusError
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("calcom: rate limited after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RateLimitError) Unwrap() error {
	return e.Last
}

type createBookingBody struct {
	Start       string            `json:"start"`
	End         string            `json:"end"`
	EventTypeID int64             `json:"eventTypeId"`
	Responses   bookingResponses  `json:"responses"`
	TimeZone    string            `json:"timeZone"`
	Language    string            `json:"language"`
	Metadata    map[string]string `json:"metadata"`
}

type bookingResponses struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type updateBookingBody struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type referencesEnvelope struct {
	BookingReferences []domain.BookingReference `json:"booking_references"`
}

type bookingEnvelope struct {
	Booking domain.Booking `json:"booking"`
}

const (
	defaultBaseURL   = "https://api.cal.com/v1"
	maxAttempts      = 5
	baseRetryDelay   = time.Second
	maxErrorBodySize = 4096
	maxBodySize      = 1 << 20
)

// Client is a focused Cal.com v1 API client. Every call carries the API key
// as a query-string credential and is retried with exponential backoff when
// the service answers with HTTP 429.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string
	eventTypeID int64

	// Injected for tests; default to time.Sleep and a uniform [0,1) source.
	sleep  func(time.Duration)
	jitter func() float64

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given parameter getter for API
// key retrieval. The key is fetched on the first call and reused for the
// lifetime of the process. eventTypeID is the fixed event type every created
// booking is attached to.
func NewClient(ps Getter, paramPrefix string, eventTypeID int64, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("calcom: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("calcom: parameter prefix must not be empty")
	}
	if eventTypeID <= 0 {
		return nil, errors.New("calcom: event type id must be positive")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		eventTypeID: eventTypeID,
		sleep:       time.Sleep,
		jitter:      uniformJitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = paramstore.SecretToken(ctx, c.getter, c.keyParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) keyParameterName() string {
	return c.paramPrefix + "/cal-api-key"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// CreateBooking submits a new booking and returns the created record.
func (c *Client) CreateBooking(ctx context.Context, p domain.CreateBookingPayload) (*domain.Booking, error) {
	body, err := json.Marshal(createBookingBody{
		Start:       p.Start,
		End:         p.End,
		EventTypeID: c.eventTypeID,
		Responses:   bookingResponses{Name: p.Name, Email: p.Email, Notes: p.Notes},
		TimeZone:    p.TimeZone,
		Language:    p.Language,
		Metadata:    map[string]string{},
	})
	if err != nil {
		return nil, fmt.Errorf("calcom: marshal create booking request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/bookings", nil, body)
	if err != nil {
		return nil, err
	}

	var booking domain.Booking
	if decErr := json.Unmarshal(raw, &booking); decErr != nil {
		return nil, fmt.Errorf("calcom: decode create booking response: %w", decErr)
	}
	return &booking, nil
}

// ListBookingReferences returns every booking-reference record known to the
// service, deleted or not. Callers filter on the deletion marker themselves.
func (c *Client) ListBookingReferences(ctx context.Context) ([]domain.BookingReference, error) {
	raw, err := c.do(ctx, http.MethodGet, "/booking-references", nil, nil)
	if err != nil {
		return nil, err
	}

	var payload referencesEnvelope
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, fmt.Errorf("calcom: decode booking references: %w", decErr)
	}
	return payload.BookingReferences, nil
}

// GetBooking fetches one booking's detail record.
func (c *Client) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	raw, err := c.do(ctx, http.MethodGet, "/bookings/"+strconv.FormatInt(bookingID, 10), nil, nil)
	if err != nil {
		return nil, err
	}

	var payload bookingEnvelope
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, fmt.Errorf("calcom: decode booking %d: %w", bookingID, decErr)
	}
	return &payload.Booking, nil
}

// CancelBooking cancels a booking. The reason is optional and forwarded to
// the service as a query parameter when present.
func (c *Client) CancelBooking(ctx context.Context, bookingID int64, reason string) error {
	query := url.Values{}
	if strings.TrimSpace(reason) != "" {
		query.Set("cancellationReason", reason)
	}
	_, err := c.do(ctx, http.MethodDelete, "/bookings/"+strconv.FormatInt(bookingID, 10)+"/cancel", query, nil)
	return err
}

// DeleteBookingReference deletes one booking-reference record.
func (c *Client) DeleteBookingReference(ctx context.Context, referenceID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/booking-references/"+strconv.FormatInt(referenceID, 10), nil, nil)
	return err
}

// UpdateBooking applies a partial update to a booking's start and end
// instants and returns the service's raw updated record.
func (c *Client) UpdateBooking(ctx context.Context, bookingID int64, startTime, endTime string) (json.RawMessage, error) {
	body, err := json.Marshal(updateBookingBody{StartTime: startTime, EndTime: endTime})
	if err != nil {
		return nil, fmt.Errorf("calcom: marshal update booking request: %w", err)
	}
	return c.do(ctx, http.MethodPatch, "/bookings/"+strconv.FormatInt(bookingID, 10), nil, body)
}
