package domain

import "errors"

var (
	// ErrPermissionDenied indicates the viewer lacks rights for the
	// attempted mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyAssigned indicates a claim raced another participant who
	// got there first.
	ErrAlreadyAssigned = errors.New("task already assigned")

	// ErrDependencyIncomplete indicates a done transition was attempted
	// while at least one dependency is not yet done.
	ErrDependencyIncomplete = errors.New("dependency not complete")

	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSyncInFlight rejects a structural commit while another one is
	// still awaiting its persistence round trip.
	ErrSyncInFlight = errors.New("commit already in flight")

	// ErrUnreconcilable indicates an inbound event cannot be safely
	// applied to the snapshot; the board must be refetched wholesale.
	ErrUnreconcilable = errors.New("event cannot be reconciled")
)
