package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// violation.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation
// raised by the database. Stores check inserts with it so a racing duplicate
// surfaces as Conflict rather than a bare driver error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
