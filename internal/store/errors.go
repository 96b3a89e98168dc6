package store

import (
	"errors"

	"github.com/lib/pq"
)

const pqForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
