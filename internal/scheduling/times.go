package scheduling

import (
	"errors"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04"
	localDateTime   = dateLayout + " " + clockLayout
	minuteKeyLayout = "2006-01-02T15:04"
)

// errBadTimeFormat marks date/time input that does not parse. Callers wrap it
// into a user-facing Error with the standard format explanation.
var errBadTimeFormat = errors.New("scheduling: invalid date or time format")

// now is the clock seam; tests override it to pin "the present".
var now = time.Now

// ResolveLocalTime combines a local calendar date (YYYY-MM-DD) and time of
// day (HH:MM) into an absolute instant in the given location.
func ResolveLocalTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(localDateTime, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, errBadTimeFormat
	}
	return t, nil
}

// isPast reports whether t is strictly before the current time in t's own
// location. Re-checked at every mutation: wall-clock time elapsed between
// agent turns can turn a previously-future instant into a past one.
func isPast(t time.Time) bool {
	return t.Before(now().In(t.Location()))
}

// minuteKey formats an instant at minute precision for local-time matching.
func minuteKey(t time.Time) string {
	return t.Format(minuteKeyLayout)
}
