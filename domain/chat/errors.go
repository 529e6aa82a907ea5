package chat

import "errors"

var (
	// ErrRoomNotFound is returned when an operation references a room that
	// does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrStoreUnavailable wraps failures of the presence, room or message
	// stores. Callers treat it as transient.
	ErrStoreUnavailable = errors.New("store unavailable")
)
