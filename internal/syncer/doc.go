// Package syncer keeps a copy of a remote artifact in a blob store and
// tells a dependent service when the artifact changes.
//
// # Run
//
// A run fetches the artifact, computes its SHA-256 fingerprint and compares
// it with the fingerprint recorded by the previous successful run:
//
//	START -> FETCHING -> COMPARING -> UNCHANGED_DONE
//	                               -> PROPAGATING -> DONE
//
// Any step may move to ERROR. When the fingerprint is unchanged nothing is
// written. Otherwise the artifact is uploaded, the new fingerprint is
// recorded and, when a notifier is configured, the dependent service is
// asked to refresh. The three writes happen in that order and a failure
// stops the run before the next one.
//
// If the notification fails after the fingerprint was recorded, the next
// run sees the artifact as unchanged and does not notify again. Use
// Refresh to trigger the dependent service by hand in that case.
//
// # Errors
//
// Run returns the failing component's error unchanged: *http.FetchError,
// *store.Error, *notify.Error or *config.Error. Classify maps any of them
// to an ErrorClass.
package syncer
