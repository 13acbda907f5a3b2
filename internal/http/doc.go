// Package http provides the HTTP client used to download the remote artifact.
//
// This package handles:
//   - Whole-body GET requests bounded by a per-attempt timeout
//   - Failure classification (success, retryable, fatal)
//   - Retry with exponential backoff and jitter
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Timeout:      60 * time.Second,
//	    MaxAttempts:  3,
//	    RetryBackoff: time.Second,
//	})
//
//	res, err := client.Fetch(ctx, url)
//	// res.Body, res.Size
//
// # Classification
//
// Statuses 408, 429, 500, 502, 503 and 504 are retried, as are attempt
// timeouts, connection resets and refusals, and DNS misses. Anything else
// fails immediately with a *FetchError of kind Fatal. When every attempt
// fails on a retryable cause the error kind is Exhausted.
//
// A failure while reading a 2xx body goes through the same transport rules:
// a timeout or reset mid-body is retried, a truncated body is fatal.
package http
