package service

import "errors"

var (
	// ErrDuplicateKey means a campaign already exists for the natural key
	ErrDuplicateKey = errors.New("campaign already exists")
	// ErrNotFound means the record or its backing message no longer exists
	ErrNotFound = errors.New("not found")
	// ErrExternalUnavailable means a gateway call failed for a reason other than a missing resource
	ErrExternalUnavailable = errors.New("gateway unavailable")
	// ErrInconsistent means a durable record outlived its backing message
	ErrInconsistent = errors.New("campaign record has no backing message")
	// ErrInvalidInput means command arguments failed validation
	ErrInvalidInput = errors.New("invalid input")
)
