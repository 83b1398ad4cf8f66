package memory

import (
	"context"
	"fmt"
	"time"

	"tinedy-api/res/store"
)

type customerStore struct {
	*storeImpl
}

func (cs *customerStore) Create(ctx context.Context, customer *store.Customer) error {
	defer cs.lock()()
	data := cs.root.data

	if _, exists := data.customers[customer.ID]; exists {
		return fmt.Errorf("%w: customer %s", store.ErrUniqueViolation, customer.ID)
	}
	for _, existing := range data.customers {
		if existing.Phone == customer.Phone {
			return fmt.Errorf("%w: customer phone %s", store.ErrUniqueViolation, customer.Phone)
		}
	}

	now := time.Now()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now

	stored := *customer
	data.customers[customer.ID] = &stored
	return nil
}

func (cs *customerStore) Update(ctx context.Context, id, name, email, address string) error {
	defer cs.lock()()

	c, ok := cs.root.data.customers[id]
	if !ok {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	c.Name, c.Email, c.Address = name, email, address
	c.UpdatedAt = time.Now()
	return nil
}

func (cs *customerStore) IncrementTotalBookings(ctx context.Context, id string) error {
	defer cs.lock()()

	c, ok := cs.root.data.customers[id]
	if !ok {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	c.TotalBookings++
	return nil
}

func (cs *customerStore) Get(ctx context.Context, id string) (*store.Customer, error) {
	defer cs.lock()()

	c, ok := cs.root.data.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (cs *customerStore) GetByPhone(ctx context.Context, phone string) (*store.Customer, error) {
	defer cs.lock()()

	for _, c := range cs.root.data.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: customer phone %s", store.ErrNotFound, phone)
}
