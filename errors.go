package strand

import "errors"

var (
	// ErrDeadlock is returned when an operation would block forever on
	// the calling fiber itself, e.g. joining the current fiber.
	ErrDeadlock = errors.New("strand: resource deadlock would occur")

	// ErrNotJoinable is returned by Join on a fiber that was detached or
	// already joined.
	ErrNotJoinable = errors.New("strand: fiber is not joinable")
)
