package notification

import "context"

// NotificationService defines the interface for operations-channel notifications
type NotificationService interface {
	// NotifyBookingCreated tells the operations channel a booking was created
	NotifyBookingCreated(ctx context.Context, bookingID, customerName, serviceName, date, startTime string) error
	// NotifyBookingCancelled tells the operations channel a booking was cancelled, and by whom
	NotifyBookingCancelled(ctx context.Context, bookingID, customerName, date, reason, cancelledBy string) error
}
