package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the storage, content and search layers
var (
	// ErrNotFound is returned when exactly one row was expected and none matched
	ErrNotFound = errors.New("not found")

	// ErrQueryFailed covers every other database-layer failure
	ErrQueryFailed = errors.New("query failed")

	// ErrPoolExhausted is returned when no pooled connection became available in time.
	// It wraps ErrQueryFailed.
	ErrPoolExhausted = fmt.Errorf("%w: connection pool exhausted", ErrQueryFailed)

	// ErrValidation is returned for malformed external input
	ErrValidation = errors.New("validation failed")

	// ErrIncompatibleSchema is returned when a database file cannot be served.
	// It wraps ErrValidation.
	ErrIncompatibleSchema = fmt.Errorf("%w: incompatible database schema", ErrValidation)
)
