package postgresql

import (
	"errors"
	"fmt"
	"strings"

	"tinedy-api/res/store"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes worth retrying the whole transaction for
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgClassConnectionException = "08"
)

// translateError maps driver errors onto the store sentinels. Errors that are
// already store or domain errors pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrUniqueViolation) || errors.Is(err, store.ErrTransient) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", store.ErrUniqueViolation, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgCodeSerializationFailure ||
			pgErr.Code == pgCodeDeadlockDetected ||
			strings.HasPrefix(pgErr.Code, pgClassConnectionException) {
			return fmt.Errorf("%w: %w", store.ErrTransient, err)
		}
		return err
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", store.ErrTransient, err)
	}

	return err
}
