package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-agent/internal/domain"
)

// BookingAPI is the external booking service surface the orchestrator
// consumes. *calcom.Client satisfies this interface; rate-limit retry lives
// behind it, so a 429 seen here means the retry budget is already spent.
type BookingAPI interface {
	CreateBooking(ctx context.Context, p domain.CreateBookingPayload) (*domain.Booking, error)
	ListBookingReferences(ctx context.Context) ([]domain.BookingReference, error)
	GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64, reason string) error
	DeleteBookingReference(ctx context.Context, referenceID int64) error
	UpdateBooking(ctx context.Context, bookingID int64, startTime, endTime string) (json.RawMessage, error)
}

const (
	longDateLayout  = "January 02, 2006"
	clock12Layout   = "03:04 PM"
	localizedLayout = "2006-01-02 15:04:05 MST"
)

// Service implements the four user-facing booking operations. It holds no
// state between invocations beyond its configuration; every operation
// re-fetches what it needs from the external service.
type Service struct {
	api      BookingAPI
	loc      *time.Location
	timezone string
	language string
}

// NewService creates the booking orchestrator. timezone is the IANA zone new
// bookings are created in; language is the booking language tag sent to the
// external service.
func NewService(api BookingAPI, timezone, language string) (*Service, error) {
	if api == nil {
		return nil, errors.New("scheduling: booking api must not be nil")
	}
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, errors.New("scheduling: timezone must not be empty")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load timezone %q: %w", timezone, err)
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "en"
	}
	return &Service{api: api, loc: loc, timezone: timezone, language: language}, nil
}

type createSummary struct {
	Date        string `json:"Date"`
	Time        string `json:"Time"`
	Duration    string `json:"Duration"`
	Reason      string `json:"Reason"`
	Name        string `json:"Name"`
	Email       string `json:"Email"`
	MeetingLink string `json:"Meeting Link"`
}

// CreateBooking books a new meeting and returns a simplified human-readable
// summary. The requested duration is snapped to the nearest accepted value,
// never rejected.
func (s *Service) CreateBooking(ctx context.Context, req domain.BookingRequest) (string, error) {
	adjusted := NearestDuration(req.Duration)

	start, err := ResolveLocalTime(req.Date, req.Time, s.loc)
	if err != nil {
		return "", newError(ErrorInvalidTimeFormat, msgInvalidTimeFormat, err)
	}
	if isPast(start) {
		return "", newError(ErrorPastInstant, msgPastBooking, nil)
	}
	end := start.Add(time.Duration(adjusted) * time.Minute)

	booking, err := s.api.CreateBooking(ctx, domain.CreateBookingPayload{
		Start:    start.Format(time.RFC3339),
		End:      end.Format(time.RFC3339),
		Name:     req.Name,
		Email:    req.Email,
		Notes:    req.Reason,
		TimeZone: s.timezone,
		Language: s.language,
	})
	if err != nil {
		return "", s.classifyCreateError(err, req, adjusted)
	}

	link := booking.Metadata.VideoCallURL
	if link == "" {
		link = "No video call link provided"
	}
	summary, err := json.MarshalIndent(createSummary{
		Date:        start.Format(longDateLayout),
		Time:        fmt.Sprintf("%s to %s (%s)", start.Format(clock12Layout), end.Format(clock12Layout), s.timezone),
		Duration:    fmt.Sprintf("%d minutes", adjusted),
		Reason:      req.Reason,
		Name:        req.Name,
		Email:       req.Email,
		MeetingLink: link,
	}, "", "  ")
	if err != nil {
		return "", newError(ErrorExternalService, msgCreateGeneric(err.Error()), err)
	}
	return string(summary), nil
}

// classifyCreateError turns an external create failure into a user-actionable
// explanation by matching the service's error message against the ordered
// rule table.
func (s *Service) classifyCreateError(err error, req domain.BookingRequest, adjusted int) *Error {
	status, serviceMsg, isStatus := externalErrorParts(err)
	if !isStatus {
		return newError(ErrorTransport, msgCreateGeneric(err.Error()), err)
	}
	if status == 429 {
		return newError(ErrorRateLimited, msgRateLimited, err)
	}

	switch classifyServiceMessage(serviceMsg) {
	case ruleInvalidDuration:
		return newError(ErrorExternalService, fmt.Sprintf(msgInvalidDuration, req.Duration, adjusted), err)
	case rulePastTime:
		return newError(ErrorPastInstant, "Error: "+msgPastBooking, err)
	case ruleMissingFields:
		missing := missingBookingFields(req)
		if len(missing) == 0 {
			return newError(ErrorExternalService, msgInvalidInput, err)
		}
		return newError(ErrorMissingField, fmt.Sprintf(msgMissingFields, strings.Join(missing, ", ")), err)
	default:
		return newError(ErrorExternalService, msgCreateGeneric(serviceMsg), err)
	}
}

// missingBookingFields names the request fields the user still has to supply.
func missingBookingFields(req domain.BookingRequest) []string {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		missing = append(missing, "date and time")
	}
	if strings.TrimSpace(req.Reason) == "" {
		missing = append(missing, "reason")
	}
	return missing
}

type simplifiedBooking struct {
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Description  string `json:"description"`
	Timezone     string `json:"timezone"`
	Locale       string `json:"locale"`
	VideoCallURL string `json:"videoCallUrl"`
}

type bookingList struct {
	UserBookings []simplifiedBooking `json:"user_bookings"`
}

// ListBookings returns the user's non-cancelled bookings localized to the
// attendee's own timezone. An empty result is not an error.
func (s *Service) ListBookings(ctx context.Context, email string) (string, error) {
	bookings, err := s.userBookings(ctx, email)
	if err != nil {
		return "", s.classifyFetchError(err)
	}
	if len(bookings) == 0 {
		return fmt.Sprintf("No bookings found for %s.", email), nil
	}

	simplified := make([]simplifiedBooking, 0, len(bookings))
	for _, b := range bookings {
		attendee := attendeeFor(b, email)

		start, end := b.StartTime, b.EndTime
		tz := attendee.TimeZone
		if loc, locErr := time.LoadLocation(tz); locErr == nil {
			if t, perr := time.Parse(time.RFC3339, b.StartTime); perr == nil {
				start = t.In(loc).Format(localizedLayout)
			}
			if t, perr := time.Parse(time.RFC3339, b.EndTime); perr == nil {
				end = t.In(loc).Format(localizedLayout)
			}
		}

		simplified = append(simplified, simplifiedBooking{
			StartTime:    start,
			EndTime:      end,
			Description:  b.Description,
			Timezone:     tz,
			Locale:       attendee.Locale,
			VideoCallURL: b.Metadata.VideoCallURL,
		})
	}

	body, err := json.MarshalIndent(bookingList{UserBookings: simplified}, "", "  ")
	if err != nil {
		return "", newError(ErrorExternalService, fmt.Sprintf(msgFetchGeneric, err), err)
	}
	return fmt.Sprintf("Found %d bookings for %s.\n%s", len(simplified), email, body), nil
}

// CancelBooking cancels the booking matching the given local date/time and
// then removes the booking's reference record best-effort. A failed or
// missing reference delete does not fail the cancellation; it only changes
// the reported message.
func (s *Service) CancelBooking(ctx context.Context, email, date, clock, reason string) (string, error) {
	booking, err := s.findBooking(ctx, email, date, clock)
	if err != nil {
		return "", s.classifyFetchError(err)
	}
	if booking == nil {
		return "", newError(ErrorNotFound, fmt.Sprintf("Error: No booking found for %s on %s at %s", email, date, clock), nil)
	}

	if err := s.api.CancelBooking(ctx, booking.ID, reason); err != nil {
		return "", s.classifyCancelError(err)
	}

	return s.cleanupReference(ctx, booking.ID, email, date, clock), nil
}

// cleanupReference locates and deletes the cancelled booking's reference
// record. Every outcome resolves to a success message; only the wording
// distinguishes a clean delete from a failed or absent one.
func (s *Service) cleanupReference(ctx context.Context, bookingID int64, email, date, clock string) string {
	refs, err := s.api.ListBookingReferences(ctx)
	if err != nil {
		return fmt.Sprintf("Booking cancelled but error deleting reference: %v", err)
	}
	for _, ref := range refs {
		if ref.BookingID != bookingID {
			continue
		}
		if err := s.api.DeleteBookingReference(ctx, ref.ID); err != nil {
			return fmt.Sprintf("Booking cancelled but error deleting reference: %s", externalMessage(err))
		}
		return fmt.Sprintf("Successfully cancelled booking and deleted reference for %s on %s at %s", email, date, clock)
	}
	return fmt.Sprintf("Successfully cancelled booking for %s on %s at %s, but no matching reference found to delete", email, date, clock)
}

// RescheduleBooking moves an existing booking to a new start and/or duration.
// At least one of the new fields must be set. Unset date/time components
// default to the original ones, resolved in the original booking's attendee
// timezone.
func (s *Service) RescheduleBooking(ctx context.Context, req domain.RescheduleRequest) (string, error) {
	if req.NewDate == "" && req.NewTime == "" && req.NewDuration == 0 {
		return "", newError(ErrorMissingField, msgNoNewValues, nil)
	}

	booking, err := s.findBooking(ctx, req.Email, req.Date, req.Time)
	if err != nil {
		return "", s.classifyFetchError(err)
	}
	if booking == nil {
		return "", newError(ErrorNotFound, fmt.Sprintf("Error: No booking found for %s on %s at %s", req.Email, req.Date, req.Time), nil)
	}

	loc, tzErr := bookingLocation(booking, req.Email)
	if tzErr != nil {
		return "", newError(ErrorExternalService, fmt.Sprintf("Error rescheduling booking: %v", tzErr), tzErr)
	}

	origStart, err := time.Parse(time.RFC3339, booking.StartTime)
	if err != nil {
		return "", newError(ErrorExternalService, fmt.Sprintf("Error rescheduling booking: invalid start time %q", booking.StartTime), err)
	}
	origEnd, err := time.Parse(time.RFC3339, booking.EndTime)
	if err != nil {
		return "", newError(ErrorExternalService, fmt.Sprintf("Error rescheduling booking: invalid end time %q", booking.EndTime), err)
	}

	start := origStart.In(loc)
	if req.NewDate != "" || req.NewTime != "" {
		date := req.NewDate
		if date == "" {
			date = req.Date
		}
		clock := req.NewTime
		if clock == "" {
			clock = req.Time
		}
		start, err = ResolveLocalTime(date, clock, loc)
		if err != nil {
			return "", newError(ErrorInvalidTimeFormat, msgInvalidTimeFormat, err)
		}
	}

	var end time.Time
	if req.NewDuration > 0 {
		end = start.Add(time.Duration(req.NewDuration) * time.Minute)
	} else {
		end = start.Add(origEnd.Sub(origStart))
	}

	if isPast(start) {
		return "", newError(ErrorPastInstant, msgPastReschedule, nil)
	}

	updated, err := s.api.UpdateBooking(ctx, booking.ID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return "", s.classifyRescheduleError(err)
	}
	return fmt.Sprintf("Booking rescheduled successfully. Updated booking details: %s", string(updated)), nil
}

func (s *Service) classifyFetchError(err error) *Error {
	status, _, isStatus := externalErrorParts(err)
	switch {
	case !isStatus:
		return newError(ErrorTransport, fmt.Sprintf(msgFetchGeneric, err), err)
	case status == 429:
		return newError(ErrorRateLimited, msgRateLimited, err)
	default:
		return newError(ErrorExternalService, fmt.Sprintf(msgFetchGeneric, err), err)
	}
}

func (s *Service) classifyCancelError(err error) *Error {
	status, serviceMsg, isStatus := externalErrorParts(err)
	switch {
	case !isStatus:
		return newError(ErrorTransport, fmt.Sprintf("Error cancelling booking or deleting reference: %v", err), err)
	case status == 429:
		return newError(ErrorRateLimited, msgRateLimited, err)
	default:
		return newError(ErrorExternalService, fmt.Sprintf("Error cancelling booking: %s", serviceMsg), err)
	}
}

// classifyRescheduleError keeps the external error body attached so the
// failure can be diagnosed from the relayed message.
func (s *Service) classifyRescheduleError(err error) *Error {
	status, _, isStatus := externalErrorParts(err)
	switch {
	case !isStatus:
		return newError(ErrorTransport, fmt.Sprintf("Error rescheduling booking: %v", err), err)
	case status == 429:
		return newError(ErrorRateLimited, msgRateLimited, err)
	default:
		return newError(ErrorExternalService, fmt.Sprintf("Error rescheduling booking: %v", err), err)
	}
}
