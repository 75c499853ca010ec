package queue

import "errors"

// ErrNotFound is returned when an operation references a queue row that
// does not exist.
var ErrNotFound = errors.New("queue: entry not found")

// ErrInvalidStatus is returned when a row's status column holds a value
// outside the closed Status enum. Storage must never silently coerce this
// to a zero value.
var ErrInvalidStatus = errors.New("queue: invalid status value in storage")
