package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a uniqueness violation; writers treat it as a no-op.
	ErrConflict = errors.New("conflict")
)
