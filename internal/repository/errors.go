package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write,
	// e.g. a CIP drawn concurrently by another registration.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrDuplicateRUT indicates the identity insert lost a race against a
	// concurrent registration of the same patient: the rut_hash
	// uniqueness constraint rejected the write.
	ErrDuplicateRUT = errors.New("repository: rut already mapped")
	// ErrAlreadyResolved indicates an approval request left the pending
	// state before this resolution attempt committed.
	ErrAlreadyResolved = errors.New("repository: request already resolved")
)
