package domain

import "errors"

var (
	// ErrValidation signals client-caused invalid input (bad params, empty query).
	ErrValidation = errors.New("validation failed")
	// ErrImageDecode signals unreadable or corrupt image data.
	ErrImageDecode = errors.New("image decode failed")
	// ErrEmbedding signals an embedding model failure for a single request.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexUnavailable signals that the vector index is unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrStoreUnavailable signals that the relational store is unreachable.
	ErrStoreUnavailable = errors.New("product store unavailable")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch against the
	// configured collection size. This is a configuration fault, not a
	// recoverable runtime condition.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
