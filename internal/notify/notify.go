// Package notify asks the service that consumes the artifact to pick up the
// new version.
//
// Two notifiers are provided. ECS forces a new deployment of an ECS service
// so its tasks restart and reload the artifact. Webhook POSTs a small JSON
// event to an HTTP endpoint. Neither retries; a failed notification is
// reported to the caller as a *Error.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Notifier triggers a refresh of a dependent service.
type Notifier interface {
	TriggerRefresh(ctx context.Context, service string) (*Ack, error)
}

// Ack is what the notifier learned about the refresh it triggered. Fields
// the backend does not report are left empty.
type Ack struct {
	ServiceARN   string
	DeploymentID string
	Status       string
}

// Error is a failed refresh request.
type Error struct {
	Service string
	// Code is the backend error code, when one is available.
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notify %s: %s: %v", e.Service, e.Code, e.Err)
	}
	return fmt.Sprintf("notify %s: %v", e.Service, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap turns err into a *Error for service. A nil err stays nil and an
// existing *Error is returned unchanged.
func Wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	var ne *Error
	if errors.As(err, &ne) {
		return err
	}
	return &Error{Service: service, Code: errorCode(err), Err: err}
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("HTTP%d", se.Code)
	}
	return ""
}
