package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an intent arrives while a generation call is
	// in flight.
	ErrBusy = errors.New("a generation request is already in progress")

	// ErrInvalidTransition is returned when an intent is not legal in the
	// current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// ValidationError reports unusable user input. No generation call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalidTransition(op Op, from StageName) error {
	return fmt.Errorf("%s from %s: %w", op, from, ErrInvalidTransition)
}
