package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/insurdesk/autoreg/internal/store"
)

// Postgres error code for unique constraint violations.
const uniqueViolationCode = "23505"

// mapError translates driver-level errors into the store error taxonomy so
// callers never need to import pgx to classify a failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return store.ErrDuplicate
	}

	return err
}
