package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	saltLength  = 16
	cekLength   = 16
	nonceLength = 12

	// recordSize is the fixed rs field value in the aes128gcm header.
	recordSize uint32 = 4096

	// paddingDelimiter marks the last record per the aes128gcm record
	// format; no further padding bytes are appended.
	paddingDelimiter = 0x02
)

var (
	prkInfoPrefix = []byte("WebPush: info\x00")
	cekInfo       = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo     = []byte("Content-Encoding: nonce\x00")
)

// Message is one encrypted push payload. Salt and the ephemeral server
// key are fresh per encryption; reusing either across messages would
// leak key material.
type Message struct {
	Salt            []byte
	ServerPublicKey []byte
	Ciphertext      []byte
}

// Encrypt seals plaintext for a subscription per RFC 8291:
// ephemeral ECDH over P-256 against the client's p256dh key, a PRK
// derived with the auth secret as HKDF salt, then a content key and
// nonce derived from the PRK with a fresh random salt, AES-128-GCM
// over the delimiter-padded plaintext.
func Encrypt(plaintext []byte, p256dh, auth string) (*Message, error) {
	clientPubBytes, err := decodeKey(p256dh)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh encoding: %w", err)
	}
	if len(clientPubBytes) != publicKeyLength {
		return nil, fmt.Errorf("p256dh must be %d bytes, got %d", publicKeyLength, len(clientPubBytes))
	}

	authSecret, err := decodeKey(auth)
	if err != nil {
		return nil, fmt.Errorf("invalid auth secret encoding: %w", err)
	}
	if len(authSecret) != authSecretLength {
		return nil, fmt.Errorf("auth secret must be %d bytes, got %d", authSecretLength, len(authSecret))
	}

	clientPub, err := ecdh.P256().NewPublicKey(clientPubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh public key: %w", err)
	}

	serverKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	serverPub := serverKey.PublicKey().Bytes()

	sharedSecret, err := serverKey.ECDH(clientPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh agreement failed: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	prkInfo := make([]byte, 0, len(prkInfoPrefix)+2*publicKeyLength)
	prkInfo = append(prkInfo, prkInfoPrefix...)
	prkInfo = append(prkInfo, clientPubBytes...)
	prkInfo = append(prkInfo, serverPub...)

	prk, err := deriveKey(sharedSecret, authSecret, prkInfo, 32)
	if err != nil {
		return nil, err
	}
	cek, err := deriveKey(prk, salt, cekInfo, cekLength)
	if err != nil {
		return nil, err
	}
	nonce, err := deriveKey(prk, salt, nonceInfo, nonceLength)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	padded := make([]byte, 0, len(plaintext)+1)
	padded = append(padded, plaintext...)
	padded = append(padded, paddingDelimiter)

	return &Message{
		Salt:            salt,
		ServerPublicKey: serverPub,
		Ciphertext:      gcm.Seal(nil, nonce, padded, nil),
	}, nil
}

// Body assembles the aes128gcm wire body:
// salt(16) || rs(4, big-endian) || keyid length(1) || server public key(65) || ciphertext.
func (m *Message) Body() []byte {
	body := make([]byte, 0, saltLength+5+len(m.ServerPublicKey)+len(m.Ciphertext))
	body = append(body, m.Salt...)
	body = binary.BigEndian.AppendUint32(body, recordSize)
	body = append(body, byte(len(m.ServerPublicKey)))
	body = append(body, m.ServerPublicKey...)
	body = append(body, m.Ciphertext...)
	return body
}
