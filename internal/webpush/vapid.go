package webpush

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the VAPID JWT lifetime. The protocol permits up to 24h;
// 12h tolerates clock skew without re-signing inside one invocation.
const tokenTTL = 12 * time.Hour

// VAPIDSigner mints short-lived ES256 tokens scoped to a push-service
// origin.
type VAPIDSigner struct {
	keys *VAPIDKeys
	now  func() time.Time
}

func NewVAPIDSigner(keys *VAPIDKeys) (*VAPIDSigner, error) {
	if keys == nil || keys.signingKey == nil {
		return nil, fmt.Errorf("vapid keys are required")
	}
	return &VAPIDSigner{keys: keys, now: time.Now}, nil
}

// Sign returns the compact JWT for the push service hosting endpoint.
// The audience is the endpoint's scheme://host origin.
func (s *VAPIDSigner) Sign(endpoint string) (string, error) {
	audience, err := Audience(endpoint)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"aud": audience,
		"exp": s.now().Add(tokenTTL).Unix(),
		"sub": s.keys.Subject,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.keys.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign vapid token: %w", err)
	}
	return token, nil
}

// AuthorizationHeader formats the RFC 8292 Authorization value carrying
// the signed token and the server public key.
func (s *VAPIDSigner) AuthorizationHeader(token string) string {
	return fmt.Sprintf("vapid t=%s, k=%s", token, s.keys.PublicKey)
}

// Audience extracts the scheme://host origin from a push endpoint URL.
func Audience(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("endpoint url %q has no scheme or host", endpoint)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
