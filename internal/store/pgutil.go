package store

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// jsonScanner adapts a typed destination to pgx's Scan interface for a
// jsonb column, so callers can write Scan(..., jsonScanner{&dest}, ...)
// instead of scanning into an intermediate []byte at every call site.
type jsonScanner struct {
	dest any
}

func (s jsonScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, s.dest)
	case string:
		return json.Unmarshal([]byte(v), s.dest)
	default:
		return errors.New("jsonScanner: unsupported source type")
	}
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
