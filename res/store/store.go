package store

import (
	"context"
)

type Store interface {
	Bookings() BookingStore
	Customers() CustomerStore

	// Transaction runs fn against a store bound to a single database transaction.
	// Everything fn writes commits together, or nothing does when fn returns an error.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}

type CustomerStore interface {
	Get(ctx context.Context, id string) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)

	Create(ctx context.Context, customer *Customer) error
	Update(ctx context.Context, id, name, email, address string) error
	IncrementTotalBookings(ctx context.Context, id string) error
}
