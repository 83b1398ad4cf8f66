package booking

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

const dateLayout = "2006-01-02"

// NextAvailableDate proposes a date for a duplicated booking: one week after the
// original when the original is still in the future, otherwise one week from today.
// Both dates are calendar dates in the location of clock.
func NextAvailableDate(originalDate string, clock time.Time) (string, error) {
	today := now.With(clock).BeginningOfDay()

	original, err := time.ParseInLocation(dateLayout, originalDate, clock.Location())
	if err != nil {
		return "", fmt.Errorf("invalid schedule date %q: %w", originalDate, err)
	}

	if original.After(today) {
		return original.AddDate(0, 0, 7).Format(dateLayout), nil
	}
	return today.AddDate(0, 0, 7).Format(dateLayout), nil
}
