package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/BloggingApp/currents-service/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
)

const slugConstraint = "posts_slug_key"

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeStringTooLong        = "22001"
	codeInvalidRowCount      = "2201W"
	codeInvalidOffset        = "2201X"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapError translates driver errors into the model taxonomy. Errors that
// are already classified pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *model.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.Unavailable(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.ConstraintName == slugConstraint {
				return model.Conflict(fmt.Errorf("%w: %w", model.ErrSlugTaken, err))
			}
			return model.Conflict(err)
		case codeSerializationFailure, codeDeadlockDetected:
			return model.Conflict(err)
		case codeForeignKeyViolation:
			return model.ErrUserNotFound
		case codeInvalidRowCount, codeInvalidOffset:
			return &model.Error{
				Kind:    model.KindValidation,
				Message: "page is out of range",
				Fields:  map[string]string{"page": "page is out of range"},
				Err:     err,
			}
		case codeCheckViolation, codeNotNullViolation, codeStringTooLong:
			field := pgErr.ColumnName
			if field == "" {
				field = pgErr.ConstraintName
			}
			if field == "" {
				field = "post"
			}
			return &model.Error{
				Kind:    model.KindValidation,
				Message: "value violates a storage constraint",
				Fields:  map[string]string{field: pgErr.Message},
				Err:     err,
			}
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return model.Unavailable(err)
	}

	return err
}
