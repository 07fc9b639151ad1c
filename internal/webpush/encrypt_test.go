package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

type testSubscription struct {
	clientKey  *ecdh.PrivateKey
	authSecret []byte
	p256dh     string
	auth       string
}

func newTestSubscription(t *testing.T) testSubscription {
	t.Helper()

	clientKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate client key: %v", err)
	}

	authSecret := make([]byte, authSecretLength)
	if _, err := rand.Read(authSecret); err != nil {
		t.Fatalf("failed to generate auth secret: %v", err)
	}

	return testSubscription{
		clientKey:  clientKey,
		authSecret: authSecret,
		p256dh:     base64.RawURLEncoding.EncodeToString(clientKey.PublicKey().Bytes()),
		auth:       base64.RawURLEncoding.EncodeToString(authSecret),
	}
}

// decryptBody reverses the aes128gcm framing and encryption with the
// client-side key, mirroring what a browser push stack does.
func decryptBody(t *testing.T, body []byte, sub testSubscription) []byte {
	t.Helper()

	if len(body) < saltLength+5+publicKeyLength+16 {
		t.Fatalf("body too short: %d bytes", len(body))
	}

	salt := body[:saltLength]
	if rs := binary.BigEndian.Uint32(body[16:20]); rs != recordSize {
		t.Fatalf("record size = %d, want %d", rs, recordSize)
	}
	if keyLen := int(body[20]); keyLen != publicKeyLength {
		t.Fatalf("keyid length = %d, want %d", keyLen, publicKeyLength)
	}
	serverPubBytes := body[21 : 21+publicKeyLength]
	ciphertext := body[21+publicKeyLength:]

	serverPub, err := ecdh.P256().NewPublicKey(serverPubBytes)
	if err != nil {
		t.Fatalf("invalid server public key in body: %v", err)
	}
	shared, err := sub.clientKey.ECDH(serverPub)
	if err != nil {
		t.Fatalf("client-side ecdh failed: %v", err)
	}

	prkInfo := append([]byte{}, prkInfoPrefix...)
	prkInfo = append(prkInfo, sub.clientKey.PublicKey().Bytes()...)
	prkInfo = append(prkInfo, serverPubBytes...)

	prk, err := deriveKey(shared, sub.authSecret, prkInfo, 32)
	if err != nil {
		t.Fatalf("prk derivation failed: %v", err)
	}
	cek, err := deriveKey(prk, salt, cekInfo, cekLength)
	if err != nil {
		t.Fatalf("cek derivation failed: %v", err)
	}
	nonce, err := deriveKey(prk, salt, nonceInfo, nonceLength)
	if err != nil {
		t.Fatalf("nonce derivation failed: %v", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("failed to create gcm: %v", err)
	}

	padded, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		t.Fatalf("decryption failed: %v", err)
	}
	if len(padded) == 0 || padded[len(padded)-1] != paddingDelimiter {
		t.Fatalf("missing padding delimiter, got % x", padded)
	}

	return padded[:len(padded)-1]
}

func TestEncryptRoundTrip(t *testing.T) {
	t.Parallel()

	sub := newTestSubscription(t)
	plaintext := []byte(`{"title":"Item expiring","body":"Your item expires tomorrow","type":"system"}`)

	msg, err := Encrypt(plaintext, sub.p256dh, sub.auth)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	got := decryptBody(t, msg.Body(), sub)
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", got, plaintext)
	}
}

func TestEncryptAcceptsPaddedKeys(t *testing.T) {
	t.Parallel()

	sub := newTestSubscription(t)
	padded := base64.URLEncoding.EncodeToString(sub.authSecret)

	msg, err := Encrypt([]byte("hello"), sub.p256dh, padded)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if got := decryptBody(t, msg.Body(), sub); string(got) != "hello" {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestEncryptFreshness(t *testing.T) {
	t.Parallel()

	sub := newTestSubscription(t)
	plaintext := []byte("same plaintext twice")

	first, err := Encrypt(plaintext, sub.p256dh, sub.auth)
	if err != nil {
		t.Fatalf("first Encrypt() error = %v", err)
	}
	second, err := Encrypt(plaintext, sub.p256dh, sub.auth)
	if err != nil {
		t.Fatalf("second Encrypt() error = %v", err)
	}

	if bytes.Equal(first.Salt, second.Salt) {
		t.Fatal("salt reused across encryptions")
	}
	if bytes.Equal(first.ServerPublicKey, second.ServerPublicKey) {
		t.Fatal("ephemeral key reused across encryptions")
	}
	if bytes.Equal(first.Ciphertext, second.Ciphertext) {
		t.Fatal("identical ciphertext across encryptions")
	}
}

func TestEncryptRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	sub := newTestSubscription(t)

	shortPoint := base64.RawURLEncoding.EncodeToString(make([]byte, 64))
	notOnCurve := make([]byte, publicKeyLength)
	notOnCurve[0] = 0x04 // right shape, wrong point
	shortAuth := base64.RawURLEncoding.EncodeToString(make([]byte, 8))

	testCases := []struct {
		name   string
		p256dh string
		auth   string
	}{
		{name: "p256dh not base64url", p256dh: "!!!not-base64!!!", auth: sub.auth},
		{name: "p256dh wrong length", p256dh: shortPoint, auth: sub.auth},
		{name: "p256dh not on curve", p256dh: base64.RawURLEncoding.EncodeToString(notOnCurve), auth: sub.auth},
		{name: "auth not base64url", p256dh: sub.p256dh, auth: "***"},
		{name: "auth wrong length", p256dh: sub.p256dh, auth: shortAuth},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Encrypt([]byte("x"), tc.p256dh, tc.auth); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMessageBodyFraming(t *testing.T) {
	t.Parallel()

	sub := newTestSubscription(t)

	msg, err := Encrypt([]byte("frame me"), sub.p256dh, sub.auth)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	body := msg.Body()
	wantLen := saltLength + 4 + 1 + publicKeyLength + len(msg.Ciphertext)
	if len(body) != wantLen {
		t.Fatalf("body length = %d, want %d", len(body), wantLen)
	}

	if !bytes.Equal(body[:saltLength], msg.Salt) {
		t.Fatal("body does not start with the salt")
	}
	if rs := binary.BigEndian.Uint32(body[16:20]); rs != 4096 {
		t.Fatalf("record size field = %d, want 4096", rs)
	}
	if body[20] != byte(publicKeyLength) {
		t.Fatalf("keyid length field = %d, want %d", body[20], publicKeyLength)
	}
	if !bytes.Equal(body[21:21+publicKeyLength], msg.ServerPublicKey) {
		t.Fatal("keyid field does not carry the server public key")
	}
	if !bytes.Equal(body[21+publicKeyLength:], msg.Ciphertext) {
		t.Fatal("body does not end with the ciphertext")
	}
}
