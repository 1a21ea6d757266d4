package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between falling back to
// local storage and surfacing the problem to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindPermission
	KindServer
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// DefaultMessage is used when the backend does not explain a failure.
const DefaultMessage = "operation failed"

// Error is the typed error shared by the remote client, the identity session
// and the resource stores.
type Error struct {
	Kind    Kind
	Status  int
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultMessage
	}
	switch {
	case e.Op != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, msg, e.Status)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	return err != nil && KindOf(err) == KindNetwork
}

// IsValidation reports whether err was raised before any I/O because the
// input was malformed.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// StatusKind maps an HTTP status code to a Kind.
func StatusKind(status int) Kind {
	switch {
	case status == 401:
		return KindAuth
	case status == 403:
		return KindPermission
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
