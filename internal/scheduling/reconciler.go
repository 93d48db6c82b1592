package scheduling

import (
	"context"
	"log/slog"

	"booking-agent/internal/domain"
)

// PurgeCancelledReferences sweeps all booking-reference records and deletes
// those whose booking is cancelled, restoring the invariant that every live
// reference points to a non-cancelled booking. Best effort: an individual
// failure is logged and skipped, not fatal to the sweep. Returns the number
// of references removed. Maintenance operation; nothing invokes it
// automatically.
func (s *Service) PurgeCancelledReferences(ctx context.Context) (int, error) {
	refs, err := s.api.ListBookingReferences(ctx)
	if err != nil {
		return 0, s.classifyFetchError(err)
	}

	removed := 0
	for _, ref := range refs {
		booking, err := s.api.GetBooking(ctx, ref.BookingID)
		if err != nil {
			slog.Warn("skipping reference, booking fetch failed",
				"referenceId", ref.ID, "bookingId", ref.BookingID, "err", err)
			continue
		}
		if booking.Status != domain.BookingStatusCancelled {
			continue
		}
		if err := s.api.DeleteBookingReference(ctx, ref.ID); err != nil {
			slog.Warn("failed to delete cancelled booking reference",
				"referenceId", ref.ID, "bookingId", ref.BookingID, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
