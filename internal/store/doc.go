// Package store provides the parameter and blob stores the sync writes to.
//
// Parameter stores hold small string values by name:
//   - SSMParams: AWS SSM Parameter Store
//   - BucketParams: objects in a gocloud.dev/blob bucket
//
// Blob stores hold the artifact itself:
//   - S3Blobs: AWS S3 PutObject
//   - Buckets: any gocloud.dev/blob URL (s3://, gs://, file://, mem://)
//
// A missing parameter is reported as ErrNotFound. Every other backend
// failure is a *Error carrying the operation, the key and the backend
// error code.
package store
