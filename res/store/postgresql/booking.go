package postgresql

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tinedy-api/res/store"

	"github.com/graph-gophers/dataloader"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bookingStore struct {
	*storeImpl

	loaderOnce sync.Once
	loader     *dataloader.Loader
}

func NewBookingStore(rootStore *storeImpl) *bookingStore {
	return &bookingStore{storeImpl: rootStore}
}

// MUTATIONS

func (bs *bookingStore) Create(ctx context.Context, booking *store.Booking) error {
	result := bs.db.WithContext(ctx).Create(booking)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create booking")
	}
	return nil
}

func (bs *bookingStore) Update(ctx context.Context, id string, u store.BookingUpdates) error {
	updates := map[string]interface{}{
		"updated_at": u.UpdatedAt,
		"updated_by": u.UpdatedBy,
	}

	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.Customer != nil {
		updates["customer_id"] = u.Customer.ID
		updates["customer_name"] = u.Customer.Name
		updates["customer_phone"] = u.Customer.Phone
		updates["customer_email"] = u.Customer.Email
		updates["customer_address"] = u.Customer.Address
	}
	if u.Service != nil {
		updates["service_type"] = u.Service.Type
		updates["service_category"] = u.Service.Category
		updates["service_name"] = u.Service.Name
		updates["service_required_skills"] = u.Service.RequiredSkills
		updates["service_estimated_duration"] = u.Service.EstimatedDuration
	}
	if u.Schedule != nil {
		updates["schedule_date"] = u.Schedule.Date
		updates["schedule_start_time"] = u.Schedule.StartTime
		updates["schedule_end_time"] = u.Schedule.EndTime
	}
	if u.Notes != nil {
		updates["notes"] = *u.Notes
	}
	if u.ClearAssignment {
		updates["assigned_staff_id"] = nil
		updates["assigned_staff_name"] = nil
		updates["assigned_at"] = nil
	} else if u.Assignment != nil {
		updates["assigned_staff_id"] = u.Assignment.StaffID
		updates["assigned_staff_name"] = u.Assignment.StaffName
		updates["assigned_at"] = u.Assignment.AssignedAt
	}
	if u.CompletedAt != nil {
		updates["completed_at"] = *u.CompletedAt
	}
	if u.CancelledAt != nil {
		updates["cancelled_at"] = *u.CancelledAt
	}

	result := bs.db.WithContext(ctx).Model(&store.Booking{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: booking %s", store.ErrNotFound, id)
	}
	return nil
}

func (bs *bookingStore) AppendStatusEvent(ctx context.Context, event *store.BookingStatusEvent) error {
	result := bs.db.WithContext(ctx).Create(event)
	if result.Error != nil {
		return translateError(result.Error)
	}
	return nil
}

func (bs *bookingStore) AppendChange(ctx context.Context, change *store.BookingChange) error {
	result := bs.db.WithContext(ctx).Create(change)
	if result.Error != nil {
		return translateError(result.Error)
	}
	return nil
}

func (bs *bookingStore) AddDuplicate(ctx context.Context, originalID, duplicateID string) error {
	// The foreign key on original_id rejects links to a missing booking
	result := bs.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&store.BookingLink{OriginalID: originalID, DuplicateID: duplicateID})
	if result.Error != nil {
		return translateError(result.Error)
	}
	return nil
}

// QUERIES

func (bs *bookingStore) Get(ctx context.Context, id string) (*store.Booking, error) {
	var booking store.Booking
	result := bs.withAssociations(bs.db.WithContext(ctx)).
		Preload("ChangeHistory", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&booking)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &booking, nil
}

func (bs *bookingStore) GetForUpdate(ctx context.Context, id string) (*store.Booking, error) {
	var booking store.Booking
	result := bs.withAssociations(bs.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &booking, nil
}

func (bs *bookingStore) Find(ctx context.Context, q store.BookingQuery) ([]*store.Booking, error) {
	query, err := bs.applyFilters(bs.db.WithContext(ctx), q)
	if err != nil {
		return nil, err
	}

	column := sortColumn(q.OrderBy)
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	if q.After != "" {
		var cursor store.Booking
		if err := bs.db.WithContext(ctx).Where("id = ?", q.After).First(&cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", store.ErrInvalidCursor, q.After)
			}
			return nil, translateError(err)
		}

		op := ">"
		if q.Descending {
			op = "<"
		}
		query = query.Where(fmt.Sprintf("(%s, id) %s (?, ?)", column, op), sortValue(&cursor, q.OrderBy), cursor.ID)
	}

	query = query.Order(fmt.Sprintf("%s %s, id %s", column, direction, direction))
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var bookings []*store.Booking
	if err := bs.withAssociations(query).Find(&bookings).Error; err != nil {
		return nil, translateError(err)
	}
	return bookings, nil
}

func (bs *bookingStore) Count(ctx context.Context, q store.BookingQuery) (int64, error) {
	query, err := bs.applyFilters(bs.db.WithContext(ctx).Model(&store.Booking{}), q)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (bs *bookingStore) LoadMany(ctx context.Context, ids []string) ([]*store.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	thunk := bs.batchLoader().LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	data, errs := thunk()

	bookings := make([]*store.Booking, 0, len(data))
	for i, item := range data {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], store.ErrNotFound) {
				continue
			}
			return nil, errs[i]
		}
		if booking, ok := item.(*store.Booking); ok && booking != nil {
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}

// Helper method to preload the append-only collections in their natural order
func (bs *bookingStore) withAssociations(query *gorm.DB) *gorm.DB {
	return query.
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at ASC, id ASC") }).
		Preload("Duplicates", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, duplicate_id ASC") })
}

// Helper method to apply filters
func (bs *bookingStore) applyFilters(query *gorm.DB, q store.BookingQuery) (*gorm.DB, error) {
	switch n := len(q.Statuses); {
	case n == 1:
		query = query.Where("status = ?", q.Statuses[0])
	case n > store.MaxInFilterValues:
		return nil, fmt.Errorf("%w: at most %d status values (got %d)", store.ErrInvalidInput, store.MaxInFilterValues, n)
	case n > 1:
		query = query.Where("status IN ?", q.Statuses)
	}

	if q.Date != "" {
		query = query.Where("schedule_date = ?", q.Date)
	} else if q.DateFrom != "" && q.DateTo != "" {
		query = query.Where("schedule_date >= ? AND schedule_date <= ?", q.DateFrom, q.DateTo)
	}

	if q.CustomerID != "" {
		query = query.Where("customer_id = ?", q.CustomerID)
	}

	return query, nil
}

// batchLoader collects concurrent LoadMany calls into one IN query.
// Results are never cached so every call observes committed data.
func (bs *bookingStore) batchLoader() *dataloader.Loader {
	bs.loaderOnce.Do(func() {
		bs.loader = dataloader.NewBatchedLoader(
			bs.batchGet,
			dataloader.WithCache(&dataloader.NoCache{}),
			dataloader.WithWait(2*time.Millisecond),
			dataloader.WithBatchCapacity(100),
		)
	})
	return bs.loader
}

func (bs *bookingStore) batchGet(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
	var bookings []*store.Booking
	err := bs.withAssociations(bs.db.WithContext(ctx)).
		Where("id IN ?", keys.Keys()).
		Find(&bookings).Error
	if err != nil {
		return batchError(translateError(err), keys)
	}

	byID := make(map[string]*store.Booking, len(bookings))
	for _, booking := range bookings {
		byID[booking.ID] = booking
	}

	results := make([]*dataloader.Result, 0, len(keys))
	for _, key := range keys {
		booking, ok := byID[key.String()]
		if !ok {
			results = append(results, &dataloader.Result{Error: fmt.Errorf("%w: booking %s", store.ErrNotFound, key.String())})
			continue
		}
		results = append(results, &dataloader.Result{Data: booking})
	}
	return results
}

func sortColumn(field store.BookingSortField) string {
	switch field {
	case store.BookingSortCreatedAt:
		return "created_at"
	case store.BookingSortStatus:
		return "status"
	default:
		return "schedule_date"
	}
}

func sortValue(b *store.Booking, field store.BookingSortField) interface{} {
	switch field {
	case store.BookingSortCreatedAt:
		return b.CreatedAt
	case store.BookingSortStatus:
		return b.Status
	default:
		return b.Schedule.Date
	}
}
