package payload

import (
	"fmt"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// ErrorKind classifies a decode failure
type ErrorKind int

const (
	// InvalidFormat covers malformed text, missing fields and wrong types
	InvalidFormat ErrorKind = iota + 1
	// UnknownAction means the text was well formed but act is not recognised
	UnknownAction
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid format"
	case UnknownAction:
		return "unknown action"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode. It unwraps to model.ErrInvalidFormat or
// model.ErrUnknownAction depending on Kind.
type DecodeError struct {
	Kind   ErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Unwrap(), e.Detail)
}

// Unwrap returns the sentinel matching the error kind
func (e *DecodeError) Unwrap() error {
	if e.Kind == UnknownAction {
		return model.ErrUnknownAction
	}
	return model.ErrInvalidFormat
}

func invalidf(format string, args ...any) error {
	return &DecodeError{Kind: InvalidFormat, Detail: fmt.Sprintf(format, args...)}
}
