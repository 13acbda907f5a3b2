package store

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned by ParamStore.Get when the key has no value.
var ErrNotFound = errors.New("store: not found")

// Error wraps a backing store failure.
// The original error stays in the chain for errors.As.
type Error struct {
	// Op is the operation that failed (e.g., "get", "put").
	Op string
	// Key is the parameter name or bucket/object involved.
	Key string
	// Code is the backend error code, if any (e.g., "AccessDeniedException").
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: %s %s: %s: %v", e.Op, e.Key, e.Code, e.Err)
	}
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *Error, keeping an existing *Error untouched.
// Returns nil if err is nil.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Key: key, Code: errorCode(err), Err: err}
}

// errorCode extracts the backend error code from AWS or gocloud errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	if code := gcerrors.Code(err); code != gcerrors.Unknown && code != gcerrors.OK {
		return code.String()
	}
	return ""
}
