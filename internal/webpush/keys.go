// Package webpush implements RFC 8291 message encryption (aes128gcm)
// and RFC 8292 VAPID authentication for the W3C Push API.
package webpush

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/webpushd/webpushd/internal/domain"
)

const (
	publicKeyLength  = 65 // uncompressed P-256 point: 0x04 || X || Y
	privateKeyLength = 32 // P-256 scalar
	authSecretLength = 16
)

// VAPIDKeys is the application server identity used to authenticate
// deliveries. Loaded once at startup, immutable afterwards.
type VAPIDKeys struct {
	Subject   string
	PublicKey string // base64url uncompressed point, the k= parameter value

	signingKey *ecdsa.PrivateKey
}

// LoadVAPIDKeys decodes the configured base64url key pair and imports
// the raw 32-byte scalar as an ES256 signing key. The public point is
// derived from the scalar and must match the configured public key, so
// a mismatched pair fails at startup instead of at the push service.
func LoadVAPIDKeys(publicKey, privateKey, subject string) (*VAPIDKeys, error) {
	if strings.TrimSpace(publicKey) == "" || strings.TrimSpace(privateKey) == "" {
		return nil, fmt.Errorf("%w: VAPID public and private keys are required", domain.ErrConfiguration)
	}
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: VAPID subject is required", domain.ErrConfiguration)
	}
	if !strings.HasPrefix(subject, "mailto:") && !strings.HasPrefix(subject, "https:") {
		return nil, fmt.Errorf("%w: VAPID subject must be a mailto: or https: URI", domain.ErrConfiguration)
	}

	privBytes, err := decodeKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid VAPID private key encoding: %v", domain.ErrConfiguration, err)
	}
	if len(privBytes) != privateKeyLength {
		return nil, fmt.Errorf("%w: VAPID private key must be %d bytes, got %d", domain.ErrConfiguration, privateKeyLength, len(privBytes))
	}

	pubBytes, err := decodeKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid VAPID public key encoding: %v", domain.ErrConfiguration, err)
	}
	if len(pubBytes) != publicKeyLength {
		return nil, fmt.Errorf("%w: VAPID public key must be %d bytes, got %d", domain.ErrConfiguration, publicKeyLength, len(pubBytes))
	}

	ecdhKey, err := ecdh.P256().NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid VAPID private key scalar: %v", domain.ErrConfiguration, err)
	}
	if subtle.ConstantTimeCompare(ecdhKey.PublicKey().Bytes(), pubBytes) != 1 {
		return nil, fmt.Errorf("%w: VAPID public key does not match the private key", domain.ErrConfiguration)
	}

	signingKey := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pubBytes[1 : 1+privateKeyLength]),
			Y:     new(big.Int).SetBytes(pubBytes[1+privateKeyLength:]),
		},
		D: new(big.Int).SetBytes(privBytes),
	}

	return &VAPIDKeys{
		Subject:    subject,
		PublicKey:  base64.RawURLEncoding.EncodeToString(pubBytes),
		signingKey: signingKey,
	}, nil
}

// decodeKey accepts base64url with or without padding, as subscription
// keys arrive in both forms from clients.
func decodeKey(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(value), "="))
}
