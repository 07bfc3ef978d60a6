package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when geocoding or a landmark index yields nothing.
	ErrNotFound = errors.New("location not found")
	// ErrRouteUnavailable is returned by the routing adapter. Ranking always absorbs it.
	ErrRouteUnavailable = errors.New("route unavailable")
	// ErrNoLocationResolved is returned when a dispatch carries neither a usable address nor coordinates.
	ErrNoLocationResolved = errors.New("no location resolved")
	// ErrInvalidTransition is returned for an illegal lifecycle move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStoreUnavailable is returned when the record store cannot be reached or rejects a call.
	ErrStoreUnavailable  = errors.New("record store unavailable")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrUnknownRequest    = errors.New("unknown emergency request")
	ErrInvalidRequest    = errors.New("invalid emergency request")
)

// StoreError decorates a record store failure with the operation that failed.
// It always matches ErrStoreUnavailable.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// ValidationError lists the fields of a request that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid emergency request: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }
