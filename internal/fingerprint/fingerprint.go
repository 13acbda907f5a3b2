// Package fingerprint identifies artifact content by its SHA-256 digest and
// keeps the digest of the last synced version in a parameter store.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/pagopa/pn-mandate/internal/store"
)

// Fingerprint is the lowercase hex SHA-256 of some content.
type Fingerprint string

// Digest computes the fingerprint of data.
func Digest(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Valid reports whether f looks like a digest produced by Digest.
func (f Fingerprint) Valid() bool {
	if len(f) != sha256.Size*2 {
		return false
	}
	for _, c := range f {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (f Fingerprint) String() string {
	return string(f)
}

// ErrInvalid is returned when writing something that is not a digest.
var ErrInvalid = errors.New("fingerprint: invalid digest")

// Service reads and writes the recorded fingerprint.
type Service struct {
	params store.ParamStore
}

// NewService records fingerprints in params.
func NewService(params store.ParamStore) *Service {
	return &Service{params: params}
}

// ReadStored returns the recorded fingerprint. ok is false when nothing has
// been recorded yet; that is not an error.
func (s *Service) ReadStored(ctx context.Context, key string) (fp Fingerprint, ok bool, err error) {
	v, err := s.params.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, store.Wrap("get", key, err)
	}
	if v == "" {
		return "", false, nil
	}
	return Fingerprint(v), true, nil
}

// WriteStored records fp under key.
func (s *Service) WriteStored(ctx context.Context, key string, fp Fingerprint) error {
	if !fp.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalid, string(fp))
	}
	return store.Wrap("put", key, s.params.Put(ctx, key, string(fp)))
}
