package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// CanonicalSerializer produces a deterministic byte representation of a
// schema. Two schemas with the same content must serialize identically
// regardless of declaration order.
type CanonicalSerializer interface {
	Canonical() ([]byte, error)
}

// KeyError reports a failure to derive a cache key. Callers treat it as a
// cache miss rather than a pipeline failure.
type KeyError struct {
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("querycache: derive key: %v", e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Key derives the composite cache key for a question against a schema.
// The question is normalized first, so rephrasings that normalize to the
// same text hit the same entry.
func Key(question string, schema CanonicalSerializer) (string, error) {
	canonical, err := schema.Canonical()
	if err != nil {
		return "", &KeyError{Err: err}
	}
	h := sha256.New()
	h.Write([]byte(Normalize(question)))
	h.Write([]byte("|"))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
