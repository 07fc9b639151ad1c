package webpush

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveKey runs one HKDF-SHA256 extract-and-expand and reads exactly
// length bytes of output keying material.
func deriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	okm := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), okm); err != nil {
		return nil, fmt.Errorf("hkdf derivation failed: %w", err)
	}
	return okm, nil
}
