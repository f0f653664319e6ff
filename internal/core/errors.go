package core

import "errors"

var (
	// ErrValidation marks a domain object that cannot be constructed.
	ErrValidation = errors.New("validation error")

	// ErrKind is returned when a registry is handed something it cannot hold.
	ErrKind = errors.New("wrong kind")

	// ErrNotFound is returned by read accessors only. Removals of unknown
	// entries are no-ops.
	ErrNotFound = errors.New("not found")

	// ErrImport wraps every row-level failure of a tabular import.
	ErrImport = errors.New("import error")
)

var (
	ErrEmptySources     = errors.New("sources not defined")
	ErrEmptyReceiver    = errors.New("receiver not defined")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyReplacement = errors.New("empty replacement id")
)

var (
	ErrDuplicateID     = errors.New("duplicate id")
	ErrSelfReplacement = errors.New("replacement equals current id")
)
