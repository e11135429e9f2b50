package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextInvalid = errors.New("ciphertext invalid")

// Codec encrypts individual record fields at rest. The output layout is
// nonce||ciphertext, base64-encoded. Keys shorter than 32 bytes are
// right-padded, longer ones truncated, so operators can rotate between
// passphrase-style and raw keys without a migration.
type Codec struct {
	key []byte
}

func NewCodec(key string) (*Codec, error) {
	if key == "" {
		return nil, errors.New("empty encryption key")
	}
	raw := []byte(key)
	if len(raw) < chacha20poly1305.KeySize {
		padded := make([]byte, chacha20poly1305.KeySize)
		copy(padded, raw)
		for i := len(raw); i < len(padded); i++ {
			padded[i] = '0'
		}
		raw = padded
	}
	raw = raw[:chacha20poly1305.KeySize]
	return &Codec{key: raw}, nil
}

func (c *Codec) Encrypt(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(encoded string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plain), nil
}

// SubjectHash derives the stable pseudonymous key for a channel address.
func SubjectHash(address string) string {
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:])
}

// NewPublicID mints an external-safe order reference, e.g. "TX-1f8a...".
func NewPublicID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "TX-" + hex.EncodeToString(buf)
}
