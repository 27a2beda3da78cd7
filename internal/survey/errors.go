package survey

import "fmt"

// ParseError reports a malformed uploaded track. The session step is
// left unchanged so the user can re-upload.
type ParseError struct {
	Name string // uploaded file name
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse track %q: %v", e.Name, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError reports a failed data-store write. The enclosing
// transaction has already been rolled back by the time it is returned.
type PersistenceError struct {
	Op  string // "save route", "save stop", "mark canceled"
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// UserInputError reports an event that the current step cannot consume.
// Recovered locally: logged, never surfaced to the chat as a failure.
type UserInputError struct {
	Step   string
	Reason string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("unusable input at step %s: %s", e.Step, e.Reason)
}

// SessionMissingError reports an operation invoked for a user with no
// live session. Treated as a no-op by callers.
type SessionMissingError struct {
	UserID int64
}

func (e *SessionMissingError) Error() string {
	return fmt.Sprintf("no live session for user %d", e.UserID)
}
