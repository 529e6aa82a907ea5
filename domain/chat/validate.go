package chat

import (
	"errors"
	"unicode/utf8"
)

// Validation constants
const (
	MaxUserIDLength    = 100
	MaxRoomTitleLength = 100
	MaxMessageLength   = 5000
)

// Validation errors
var (
	ErrUserIDEmpty      = errors.New("user id cannot be empty")
	ErrUserIDTooLong    = errors.New("user id exceeds maximum length")
	ErrUserIDInvalid    = errors.New("user id contains invalid characters")
	ErrRoomTitleEmpty   = errors.New("room title cannot be empty")
	ErrRoomTitleTooLong = errors.New("room title exceeds maximum length")
	ErrRoomTitleInvalid = errors.New("room title contains invalid characters")
	ErrMessageEmpty     = errors.New("message content cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrMessageInvalid   = errors.New("message contains invalid characters")
)

// ValidateUserID validates a user identifier taken from the connection URL.
func ValidateUserID(userID string) error {
	if userID == "" {
		return ErrUserIDEmpty
	}
	if len(userID) > MaxUserIDLength {
		return ErrUserIDTooLong
	}
	if !utf8.ValidString(userID) {
		return ErrUserIDInvalid
	}
	return nil
}

// ValidateRoomTitle validates a room title. Titles are not required to be unique.
func ValidateRoomTitle(title string) error {
	if title == "" {
		return ErrRoomTitleEmpty
	}
	if len(title) > MaxRoomTitleLength {
		return ErrRoomTitleTooLong
	}
	if !utf8.ValidString(title) {
		return ErrRoomTitleInvalid
	}
	return nil
}

// ValidateMessage validates a message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}
