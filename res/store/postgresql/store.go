package postgresql

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"tinedy-api/res/store"

	sqlCommenter "github.com/gouyelliot/gorm-sqlcommenter-plugin"
	"github.com/graph-gophers/dataloader"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type storeImpl struct {
	db *gorm.DB

	bookingStore  *bookingStore
	customerStore *customerStore
}

func (sImpl *storeImpl) Bookings() store.BookingStore {
	return sImpl.bookingStore
}

func (sImpl *storeImpl) Customers() store.CustomerStore {
	return sImpl.customerStore
}

func (sImpl *storeImpl) Ping(ctx context.Context) error {
	sqlDB, err := sImpl.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PoolOptions sizes the underlying database/sql pool. Zero values keep the driver defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func Connect(connectionURL string, pool PoolOptions) (*storeImpl, error) {
	db, err := gorm.Open(postgres.Open(connectionURL), &gorm.Config{TranslateError: true, PrepareStmt: false})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.Use(sqlCommenter.New()); err != nil {
		return nil, err
	}
	if err := registerCallerAnnotation(db); err != nil {
		return nil, err
	}

	return newStoreImpl(db), nil
}

// newStoreImpl wires the sub-stores around db. Transactions call it with the tx handle.
func newStoreImpl(db *gorm.DB) *storeImpl {
	s := &storeImpl{db: db}

	s.bookingStore = NewBookingStore(s)
	s.customerStore = NewCustomerStore(s)

	return s
}

// COMMON UTILITIES

// batchError fails every key of a batch with err
func batchError(err error, keys dataloader.Keys) []*dataloader.Result {
	results := make([]*dataloader.Result, len(keys))
	for i := range keys {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// callerOf names the store method that issued a statement, skipping gorm frames
func callerOf() string {
	for depth := 3; depth < 16; depth++ {
		pc, _, line, ok := runtime.Caller(depth)
		if !ok {
			break
		}
		name := runtime.FuncForPC(pc).Name()
		if strings.Contains(name, "/res/store/postgresql.") {
			return fmt.Sprintf("%s:%d", name[strings.LastIndex(name, "/")+1:], line)
		}
	}
	return "unknown"
}

func annotateWithCaller(db *gorm.DB) {
	db.Clauses(sqlCommenter.NewTag("action", callerOf()))
}

// registerCallerAnnotation tags reads and writes with the store method behind them,
// so slow query logs point at code
func registerCallerAnnotation(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("store:annotate_query", annotateWithCaller); err != nil {
		return err
	}
	if err := cb.Create().Before("gorm:create").Register("store:annotate_create", annotateWithCaller); err != nil {
		return err
	}
	return cb.Update().Before("gorm:update").Register("store:annotate_update", annotateWithCaller)
}
