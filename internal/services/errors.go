// Package services defines the conversion capabilities behind the HTTP
// handlers. This file centralizes service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// These errors travel inside a domain.Failure result; translation into
// user-facing codes happens at the handler layer, and their text is never
// shown to API callers.
package services

import "errors"

var (
	// ErrMappingNotFound is returned by a MappingStore when no entry exists
	// for the normalized name. NamingService turns it into NotImplemented.
	ErrMappingNotFound = errors.New("name mapping not found")

	// ErrEmptyInput is returned when a conversion is asked for a blank value.
	ErrEmptyInput = errors.New("conversion input is empty")

	// ErrNoStore is returned when NamingService has no backing MappingStore.
	ErrNoStore = errors.New("naming service has no mapping store")

	// ErrInvalidProvenance is returned when a stored mapping carries a
	// provenance tag outside the known set.
	ErrInvalidProvenance = errors.New("mapping has unknown provenance")
)
