package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid")
	ErrExhausted         = errors.New("sequence exhausted")
	ErrEmptyResult       = errors.New("empty result")
	ErrNoSession         = errors.New("no persisted session")
	ErrCaptureFailed     = errors.New("capture failed")
	ErrSessionTerminated = errors.New("session terminated")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
