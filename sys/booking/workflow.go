package booking

import "tinedy-api/res/store"

// transitions is the booking status state machine. Cancellation is reachable from
// every non-terminal status; every other edge moves exactly one stage forward.
var transitions = map[store.BookingStatus][]store.BookingStatus{
	store.BookingStatusPending:    {store.BookingStatusConfirmed, store.BookingStatusCancelled},
	store.BookingStatusConfirmed:  {store.BookingStatusInProgress, store.BookingStatusCancelled},
	store.BookingStatusInProgress: {store.BookingStatusCompleted, store.BookingStatusCancelled},
	store.BookingStatusCompleted:  {},
	store.BookingStatusCancelled:  {},
}

// ValidNextStatuses returns the statuses reachable from status. Unknown and terminal
// statuses have none.
func ValidNextStatuses(status store.BookingStatus) []store.BookingStatus {
	next := transitions[status]
	out := make([]store.BookingStatus, len(next))
	copy(out, next)
	return out
}

func IsValidTransition(from, to store.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(status store.BookingStatus) bool {
	return status == store.BookingStatusCompleted || status == store.BookingStatusCancelled
}

func ParseStatus(s string) (store.BookingStatus, bool) {
	status := store.BookingStatus(s)
	_, ok := transitions[status]
	return status, ok
}
