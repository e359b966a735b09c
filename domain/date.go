package domain

import "time"

// DateKey formats a moment as the YYYY-MM-DD document key for its day. The
// key follows the time's own location, so a user's day boundary is their
// local midnight.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
