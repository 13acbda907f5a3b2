package syncer

import (
	"context"
	"errors"

	"github.com/pagopa/pn-mandate/internal/config"
	mlhttp "github.com/pagopa/pn-mandate/internal/http"
	"github.com/pagopa/pn-mandate/internal/notify"
	"github.com/pagopa/pn-mandate/internal/store"
)

// ErrorClass tags the component a run failed in.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassConfiguration
	ClassFetchFatal
	ClassFetchExhausted
	ClassStore
	ClassNotifier
	ClassCanceled
	ClassUnknown
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassConfiguration:
		return "configuration"
	case ClassFetchFatal:
		return "fetch_fatal"
	case ClassFetchExhausted:
		return "fetch_exhausted"
	case ClassStore:
		return "store"
	case ClassNotifier:
		return "notifier"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Run or Refresh to its class.
// Caller cancellation wins over the component that observed it.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ClassConfiguration
	}

	var fetchErr *mlhttp.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Kind == mlhttp.Exhausted {
			return ClassFetchExhausted
		}
		return ClassFetchFatal
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return ClassStore
	}

	var notifyErr *notify.Error
	if errors.As(err, &notifyErr) {
		return ClassNotifier
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}
	return ClassUnknown
}
