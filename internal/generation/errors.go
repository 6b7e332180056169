package generation

import (
	"errors"
	"fmt"
)

// Failure is a non-success response or transport error from the backend.
type Failure struct {
	Stage  Stage
	Reason string
	// Status is the HTTP status code, or 0 for transport errors.
	Status int
	Err    error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s generation failed (status %d): %s", f.Stage, f.Status, f.Reason)
	}
	return fmt.Sprintf("%s generation failed: %s", f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// MalformedResponse is a success response that lacks the expected field.
type MalformedResponse struct {
	Stage Stage
	Field string
	Err   error
}

func (m *MalformedResponse) Error() string {
	if m.Err != nil {
		return fmt.Sprintf("%s response malformed: %s: %v", m.Stage, m.Field, m.Err)
	}
	return fmt.Sprintf("%s response malformed: missing %s", m.Stage, m.Field)
}

func (m *MalformedResponse) Unwrap() error {
	return m.Err
}

// IsFailure reports whether err is a generation failure of either kind.
func IsFailure(err error) bool {
	var f *Failure
	var m *MalformedResponse
	return errors.As(err, &f) || errors.As(err, &m)
}

// UserMessage returns the text shown to the user for a generation error.
func UserMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.Reason != "" {
		return f.Reason
	}
	var m *MalformedResponse
	if errors.As(err, &m) {
		return fmt.Sprintf("The AI backend returned an incomplete %s response.", m.Stage)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func newFailure(stage Stage, status int, reason string) *Failure {
	return &Failure{Stage: stage, Status: status, Reason: reason}
}
