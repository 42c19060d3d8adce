// Package repository defines the storage contracts for rooms, reservations
// and orders together with their MySQL and in-memory implementations, plus
// the sentinel errors shared by both. Higher layers such as the booking
// service and the handlers use these values to tell failure scenarios
// apart with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when a row addressed by id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state,
// such as a duplicate primary key or a transaction reference that is
// already recorded on another order. Handlers should translate this
// into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSoldOut is returned by ReserveIfAvailable when every unit of the
// room is already held for an overlapping window.
var ErrSoldOut = errors.New("room sold out for the requested window")
