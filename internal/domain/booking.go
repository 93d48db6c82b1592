package domain

import "encoding/json"

// BookingStatusCancelled is the status the external service assigns to
// cancelled bookings. Other statuses (CONFIRMED, PENDING, ...) are passed
// through untouched.
const BookingStatusCancelled = "CANCELLED"

// Booking is a read-only copy of a booking record owned by the external
// scheduling service. Instances are fetched per request and never cached.
type Booking struct {
	ID          int64           `json:"id"`
	StartTime   string          `json:"startTime"`
	EndTime     string          `json:"endTime"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Attendees   []Attendee      `json:"attendees"`
	Metadata    BookingMetadata `json:"metadata"`
}

// Attendee is a participant attached to a booking, carrying its own
// timezone and locale as recorded by the external service.
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
	Locale   string `json:"locale"`
}

// BookingMetadata is the free-form metadata bag on a booking. The video call
// URL is the only field the assistant surfaces.
type BookingMetadata struct {
	VideoCallURL string `json:"videoCallUrl,omitempty"`
}

// BookingReference links a booking id to the external service's internal
// reference record. Deleted is null until the reference is marked deleted;
// references with the marker set are skipped during enumeration.
type BookingReference struct {
	ID        int64           `json:"id"`
	BookingID int64           `json:"bookingId"`
	Deleted   json.RawMessage `json:"deleted"`
}

// IsDeleted reports whether the reference carries a deletion marker.
func (r BookingReference) IsDeleted() bool {
	s := string(r.Deleted)
	return s != "" && s != "null"
}

// CreateBookingPayload carries the resolved fields submitted to the external
// service when creating a booking. Start and End are ISO-8601 instants with
// offset; no naive local time crosses this boundary.
type CreateBookingPayload struct {
	Start    string
	End      string
	Name     string
	Email    string
	Notes    string
	TimeZone string
	Language string
}

// BookingRequest is the ephemeral value object for a create call.
type BookingRequest struct {
	Date     string
	Time     string
	Duration int
	Reason   string
	Name     string
	Email    string
}

// RescheduleRequest is the ephemeral value object for a reschedule call.
// Date and Time locate the existing booking; at least one of NewDate,
// NewTime or NewDuration must be set.
type RescheduleRequest struct {
	Email       string
	Date        string
	Time        string
	NewDate     string
	NewTime     string
	NewDuration int
}
