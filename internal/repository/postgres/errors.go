package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"kbase/internal/domain"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRep      = "22P02"
	codeUndefinedObject     = "42704"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// IsPgInvalidInputError reports malformed literals, e.g. a non-UUID id
func IsPgInvalidInputError(err error) bool {
	return pgCode(err) == codeInvalidTextRep
}

// IsPgUndefinedObjectError reports unknown objects such as a text search configuration
func IsPgUndefinedObjectError(err error) bool {
	return pgCode(err) == codeUndefinedObject
}

// WrapError maps a driver error onto the domain taxonomy. op names the failed
// operation and ends up in the message.
func WrapError(op string, err error) error {
	switch pgCode(err) {
	case codeInvalidTextRep, codeCheckViolation:
		return fmt.Errorf("%w: %s: %v", domain.ErrValidation, op, err)
	case codeUniqueViolation, codeForeignKeyViolation:
		return fmt.Errorf("%w: %s: %v", domain.ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
