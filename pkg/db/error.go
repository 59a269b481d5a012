package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation on any supported dialect.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	case strings.Contains(msg, "Error 1062"):
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}

	return false
}
