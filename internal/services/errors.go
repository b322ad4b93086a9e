package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Domain errors returned by the service layer. Handlers map them to HTTP
// statuses; callers match with errors.Is.
var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")

	ErrDuplicateInvitation = errors.New("this address has already been invited to the group")
	ErrAlreadyMember       = errors.New("user is already a member of this group")
	ErrInvitationResolved  = errors.New("this invitation has already been handled")
	ErrNotGroupHost        = errors.New("only the group host can do this")

	ErrDuplicateFollowUp = errors.New("meeting already has a follow-up scheduled")

	ErrPayloadTooLarge = errors.New("audio file exceeds the size limit")
	ErrNoRecording     = errors.New("meeting has no recording yet")
	ErrNoTranscript    = errors.New("meeting has no transcript yet")

	// ErrDependency wraps failures of external collaborators (transcription,
	// summarization, mail transport).
	ErrDependency = errors.New("external service failure")
)

func validationError(msg string) error {
	return &wrappedError{sentinel: ErrValidation, msg: msg}
}

func notFoundError(msg string) error {
	return &wrappedError{sentinel: ErrNotFound, msg: msg}
}

func dependencyError(msg string, cause error) error {
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &wrappedError{sentinel: ErrDependency, msg: msg}
}

// isUniqueViolation reports whether err is a database uniqueness violation,
// covering both the translated gorm sentinel and the raw driver messages.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

type wrappedError struct {
	sentinel error
	msg      string
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.sentinel }
