package quire

import "errors"

var (
	// ErrNotFound is returned when a book or blob is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrShardUnavailable is returned when a single shard's backing store is unreachable
	ErrShardUnavailable = errors.New("shard unavailable")
	// ErrUnknownProvider is returned when a stored row references a storage
	// provider that is not in the configured provider list
	ErrUnknownProvider = errors.New("unknown storage provider")
)
