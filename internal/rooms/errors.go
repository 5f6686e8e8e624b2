package rooms

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrBadCredential  = errors.New("invalid meeting password")
	ErrForbidden      = errors.New("only the host can do this")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosed     = errors.New("room is closed")
	ErrNotParticipant = errors.New("user is not a participant of this room")
)

// ValidationError reports malformed caller input (empty room name, missing
// fields). It maps to 400 at the HTTP layer.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(msg string) error { return &ValidationError{Msg: msg} }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
