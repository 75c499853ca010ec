package conflict

import "errors"

// ErrNotFound is returned when an operation references a conflict id that
// does not exist.
var ErrNotFound = errors.New("conflict: not found")

// ErrInvalidResolution is returned when ResolveManually is called with a
// value outside the allowed resolution set.
var ErrInvalidResolution = errors.New("conflict: invalid resolution value")
