package model

import (
	"errors"
	"fmt"
)

type Category string

const (
	CategoryConfig  Category = "config"
	CategoryPort    Category = "port"
	CategoryFraming Category = "framing"
	CategoryNetwork Category = "network"
	CategoryParse   Category = "parse"
	CategoryHook    Category = "hook"
)

var (
	ErrUnknownKind  = errors.New("unknown source kind")
	ErrMissingField = errors.New("missing required field")

	ErrPortOpen  = errors.New("open port")
	ErrPortWrite = errors.New("write port")
	ErrPortRead  = errors.New("read port")

	ErrShortFrame = errors.New("short response frame")

	ErrRequest = errors.New("request failed")
	ErrStatus  = errors.New("unexpected status")

	ErrJSON       = errors.New("malformed json")
	ErrMissingKey = errors.New("missing key")
	ErrWrongType  = errors.New("value is not a string")
	ErrNumeric    = errors.New("value is not a 16-bit unsigned integer")

	ErrHookSpawn = errors.New("spawn hook")
	ErrHookExit  = errors.New("hook exited with failure")
)

// Error is the typed failure returned by every acquisition path. Reason is
// one of the sentinels above, Err is the underlying cause (may be nil).
type Error struct {
	Category Category
	Reason   error
	Err      error
}

func NewError(category Category, reason, cause error) *Error {
	return &Error{Category: category, Reason: reason, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Category, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %v", e.Category, e.Reason, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// CategoryOf returns the category of the first *Error in err's chain, or "" if there is none.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
