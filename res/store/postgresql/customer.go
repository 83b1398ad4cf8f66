package postgresql

import (
	"context"
	"fmt"

	"tinedy-api/res/store"

	"gorm.io/gorm"
)

type customerStore struct {
	*storeImpl
}

func NewCustomerStore(rootStore *storeImpl) *customerStore {
	return &customerStore{storeImpl: rootStore}
}

// MUTATIONS

func (cs *customerStore) Create(ctx context.Context, customer *store.Customer) error {
	result := cs.db.WithContext(ctx).Create(customer)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create customer (phone: %s)", customer.Phone)
	}
	return nil
}

func (cs *customerStore) Update(ctx context.Context, id, name, email, address string) error {
	result := cs.db.WithContext(ctx).Model(&store.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":    name,
			"email":   email,
			"address": address,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	return nil
}

func (cs *customerStore) IncrementTotalBookings(ctx context.Context, id string) error {
	result := cs.db.WithContext(ctx).Model(&store.Customer{}).
		Where("id = ?", id).
		Update("total_bookings", gorm.Expr("total_bookings + ?", 1))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	return nil
}

// QUERIES

func (cs *customerStore) Get(ctx context.Context, id string) (*store.Customer, error) {
	var customer store.Customer
	result := cs.db.WithContext(ctx).Where("id = ?", id).First(&customer)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &customer, nil
}

func (cs *customerStore) GetByPhone(ctx context.Context, phone string) (*store.Customer, error) {
	var customer store.Customer
	result := cs.db.WithContext(ctx).Where("phone = ?", phone).First(&customer)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &customer, nil
}
