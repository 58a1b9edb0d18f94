package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindPrecondition ErrorKind = "precondition"
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindTransport    ErrorKind = "transport"
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error is a domain error carrying the kind used to pick a response status.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by identity of kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrEmptyName             = newError(KindValidation, "team name is required")
	ErrDuplicateName         = newError(KindValidation, "a team with this name already exists")
	ErrReservedName          = newError(KindValidation, "this name is reserved")
	ErrRoundFull             = newError(KindValidation, "round has reached its team capacity")
	ErrEmptyQuestion         = newError(KindValidation, "question text is required")
	ErrNoSelection           = newError(KindValidation, "select at least one team to advance")
	ErrInvalidMarks          = newError(KindValidation, "marks must be between 0 and 100")
	ErrInvalidCapacity       = newError(KindValidation, "round capacity cannot be negative")
	ErrInvalidRound          = newError(KindValidation, "round configuration is invalid")
	ErrLockedQuestion        = newError(KindPrecondition, "question is locked and cannot be deleted")
	ErrAlreadySpun           = newError(KindPrecondition, "team has already spun this round")
	ErrNoQuestionsAvailable  = newError(KindPrecondition, "no questions available")
	ErrRoundIncomplete       = newError(KindPrecondition, "every team in the round must spin before advancing")
	ErrFinalRound            = newError(KindPrecondition, "already at the final round")
	ErrNotRegistered         = newError(KindPrecondition, "team is not registered, contact the admin")
	ErrQuestionAlreadyLocked = newError(KindConflict, "question was claimed by another team, spin again")
	ErrRoundChanged          = newError(KindConflict, "current round changed, reload and try again")
	ErrTeamNotFound          = newError(KindNotFound, "team not found")
	ErrQuestionNotFound      = newError(KindNotFound, "question not found")
	ErrRoundNotFound         = newError(KindNotFound, "round not found")
	ErrAdminNotFound         = newError(KindNotFound, "admin not found")
	ErrInvalidCredentials    = newError(KindUnauthorized, "invalid credentials")
)

// TransportError wraps a storage or network failure.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var domain *Error
	if errors.As(err, &domain) {
		return err
	}
	return &Error{Kind: KindTransport, Message: op, Err: err}
}

// KindOf reports the kind of err, or an empty kind for unclassified errors.
func KindOf(err error) ErrorKind {
	var domain *Error
	if errors.As(err, &domain) {
		return domain.Kind
	}
	return ""
}
