package domain

import "errors"

// Domain errors shared by storage and transports.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidStatus     = errors.New("invalid session status")
	ErrDuplicateTag      = errors.New("tag already exists")
	ErrInvalidTagKind    = errors.New("invalid tag kind")
)
