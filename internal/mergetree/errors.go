package mergetree

import "errors"

// ErrPoisoned and ErrCancelled are this package's own sentinels; the root
// package's Writer facade maps them onto the public error taxonomy
// (ErrIoFailure, ErrWriterPoisoned, ...) at the boundary so this package
// stays independent of the root package's error wrapping conventions.
var (
	ErrPoisoned  = errors.New("mergetree: writer poisoned")
	ErrCancelled = errors.New("mergetree: cancelled")
)
