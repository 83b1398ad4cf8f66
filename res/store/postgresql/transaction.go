package postgresql

import (
	"context"

	"tinedy-api/res/store"

	"gorm.io/gorm"
)

// Transaction runs fn against a store bound to one gorm transaction.
// Row locks taken with GetForUpdate are held until fn returns.
func (sImpl *storeImpl) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	err := sImpl.db.WithContext(ctx).Transaction(func(txDB *gorm.DB) error {
		return fn(newStoreImpl(txDB))
	})
	return translateError(err)
}
