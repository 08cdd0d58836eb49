package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrCapacityExceeded is returned when a lecturer allocation has no free slot left.
	ErrCapacityExceeded = errors.New("lecturer allocation is full")
	// ErrNoAllocation is returned when a lecturer has no allocation row for the period.
	ErrNoAllocation = errors.New("lecturer has no allocation in period")
	// ErrStaleState is returned when a conditional update finds the row in another state.
	ErrStaleState = errors.New("record changed concurrently")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
