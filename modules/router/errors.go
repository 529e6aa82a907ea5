package router

import (
	"errors"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
)

var (
	// ErrMalformedEvent is returned for frames that are not valid JSON or
	// lack a required field.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionNotOpen is returned when a session is opened twice or used
	// before Open.
	ErrSessionNotOpen = errors.New("session not open")

	// ErrRateLimited is returned when a user sends messages too fast.
	ErrRateLimited = errors.New("rate limited")
)

// errorCode maps an operation error to the code sent to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, chat.ErrMessageEmpty),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrMessageInvalid),
		errors.Is(err, chat.ErrRoomTitleEmpty),
		errors.Is(err, chat.ErrRoomTitleTooLong),
		errors.Is(err, chat.ErrRoomTitleInvalid):
		return "invalid"
	default:
		return "unavailable"
	}
}
