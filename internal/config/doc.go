// Package config defines configuration structures for a sync run.
//
// Configuration can be provided via:
//   - YAML configuration file, with ${VAR} and ${VAR:-default} expansion
//   - Environment variables (MLSYNC_ prefix)
//
// Values are layered on top of Default and checked once by Validate, which
// reports every missing or invalid setting in a single *Error.
//
// # Structure
//
//	type Config struct {
//	    Source      SourceConfig      // url, timeout, max_attempts, retry_backoff, max_size
//	    Fingerprint FingerprintConfig // parameter, store_url
//	    Blob        BlobConfig        // bucket, object, content_type
//	    Notify      NotifyConfig      // kind, cluster, service, webhook_url
//	    AWS         AWSConfig         // region, endpoint, use_path_style
//	    LogLevel    string
//	}
package config
