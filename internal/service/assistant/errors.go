package assistant

import (
	"errors"
	"fmt"
)

// Kind categorizes assistant failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnect
	KindTransport
	KindStatus
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by the remote assistant client.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrNoUserMessage is returned when a prediction is requested without any
// user text to forward.
var ErrNoUserMessage = errors.New("no user message to send")

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Reason extracts the most specific human readable failure reason from err,
// skipping wrappers added by the model pipeline. Without an *Error in the
// chain the innermost cause is used.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
