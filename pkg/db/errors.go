package db

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE classes that indicate the store may recover on its own.
var transientClasses = []string{
	"08", // connection exception
	"40", // transaction rollback (serialization failure, deadlock)
	"53", // insufficient resources
	"57", // operator intervention (admin shutdown, cannot connect now)
}

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code := sqlState(err); code != "" && code != "23505" {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return sqlState(err) == "23505" ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsTransient reports whether err looks like a temporary persistence failure
// that a later attempt could get past.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	code := sqlState(err)
	if len(code) < 2 {
		return false
	}
	for _, class := range transientClasses {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return false
}

// IsSerializationFailure reports a transaction aborted by a serialization
// conflict or deadlock. The whole transaction can be replayed.
func IsSerializationFailure(err error) bool {
	switch sqlState(err) {
	case "40001", "40P01":
		return true
	}
	return false
}

// HasSQLState reports whether err carries a Postgres SQLSTATE from either driver.
func HasSQLState(err error) bool {
	return sqlState(err) != ""
}

func sqlState(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
