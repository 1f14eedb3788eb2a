// Package apperr holds the client-addressable error codes shared by the room
// store, the battle coordinator and the gateway.
package apperr

import "errors"

type Code string

const (
	RoomNotFound     Code = "ROOM_NOT_FOUND"
	RoomFull         Code = "ROOM_FULL"
	WrongPassword    Code = "WRONG_PASSWORD"
	AlreadyInRoom    Code = "ALREADY_IN_ROOM"
	NotInRoom        Code = "NOT_IN_ROOM"
	InvalidPayload   Code = "INVALID_PAYLOAD"
	BattleNotStarted Code = "BATTLE_NOT_STARTED"
	InvalidCommand   Code = "INVALID_COMMAND"
	AlreadySubmitted Code = "ALREADY_SUBMITTED"
	NotReady         Code = "NOT_READY"
)

// Error is a structural, non-retryable failure. The gateway forwards Code and
// Message to the originating connection unchanged.
type Error struct {
	Code    Code
	Message string
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// As unwraps err into an *Error. ok is false for anything that is not an
// application error (those are bugs, not client mistakes).
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
