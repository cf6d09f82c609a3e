package service

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
)

// ErrNotFound is returned when a referenced event or entry does not exist.
var ErrNotFound = repository.ErrNotFound

// ErrSlotsFull is returned when an event has no free position left.
var ErrSlotsFull = errors.New("all slots are taken")

// ErrConflictRetryExhausted is returned when every claim attempt lost its
// position to a concurrent sign-up. The event may still have room.
var ErrConflictRetryExhausted = errors.New("too many simultaneous sign-ups, please try again")

// ErrPositionConflict is returned when a reorder collides with an entry
// written concurrently after the batch was validated.
var ErrPositionConflict = errors.New("position was taken by a concurrent change")

// ValidationError reports malformed, missing or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps any other failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr passes ErrNotFound through and wraps everything else.
func storageErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
