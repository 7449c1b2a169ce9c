package store

import "errors"

// ErrNotFound is returned when a record does not exist. Repositories
// also return it when a record exists but belongs to a different owner,
// so callers cannot tell the two apart.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert or update would violate
// the global email uniqueness constraint.
var ErrDuplicateEmail = errors.New("email already exists")
