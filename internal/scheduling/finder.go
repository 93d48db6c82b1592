package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-agent/internal/domain"
)

// userBookings enumerates the user's non-cancelled bookings: every
// non-deleted booking reference, deduplicated by booking id, each booking
// fetched individually and kept only when its attendee list contains the
// email. One round trip per booking id; reference order is preserved.
func (s *Service) userBookings(ctx context.Context, email string) ([]domain.Booking, error) {
	refs, err := s.api.ListBookingReferences(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(refs))
	bookings := make([]domain.Booking, 0, len(refs))
	for _, ref := range refs {
		if ref.IsDeleted() {
			continue
		}
		if _, dup := seen[ref.BookingID]; dup {
			continue
		}
		seen[ref.BookingID] = struct{}{}

		booking, err := s.api.GetBooking(ctx, ref.BookingID)
		if err != nil {
			return nil, err
		}
		if booking.Status == domain.BookingStatusCancelled {
			continue
		}
		if !hasAttendee(*booking, email) {
			continue
		}
		bookings = append(bookings, *booking)
	}
	return bookings, nil
}

// findBooking locates the user's booking whose start instant, converted into
// the attendee's own recorded timezone, matches the requested local
// date/time to the minute. The external service has no find-by-local-time
// query, so its timezone bookkeeping is replicated here per attendee.
// Returns nil when nothing matches; zero candidates and no match among
// candidates are both absence.
func (s *Service) findBooking(ctx context.Context, email, date, clock string) (*domain.Booking, error) {
	bookings, err := s.userBookings(ctx, email)
	if err != nil {
		return nil, err
	}

	target := date + "T" + clock
	for i := range bookings {
		b := bookings[i]
		start, err := time.Parse(time.RFC3339, b.StartTime)
		if err != nil {
			continue
		}
		loc, err := bookingLocation(&b, email)
		if err != nil {
			continue
		}
		if minuteKey(start.In(loc)) == target {
			return &b, nil
		}
	}
	return nil, nil
}

func hasAttendee(b domain.Booking, email string) bool {
	for _, a := range b.Attendees {
		if a.Email == email {
			return true
		}
	}
	return false
}

// attendeeFor returns the attendee record for the given email, falling back
// to the first attendee when the email is not on the list. One rule for
// every call path: the requesting user's own record wins when present.
func attendeeFor(b domain.Booking, email string) domain.Attendee {
	for _, a := range b.Attendees {
		if a.Email == email {
			return a
		}
	}
	if len(b.Attendees) > 0 {
		return b.Attendees[0]
	}
	return domain.Attendee{}
}

// bookingLocation loads the timezone recorded on the booking's attendee
// record for the given email.
func bookingLocation(b *domain.Booking, email string) (*time.Location, error) {
	attendee := attendeeFor(*b, email)
	if attendee.TimeZone == "" {
		return nil, errors.New("scheduling: booking has no attendee timezone")
	}
	loc, err := time.LoadLocation(attendee.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load attendee timezone %q: %w", attendee.TimeZone, err)
	}
	return loc, nil
}
