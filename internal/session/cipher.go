package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ENV_SESSION_KEY names the environment variable holding the session secret. The secret is
// never written anywhere.
const ENV_SESSION_KEY = "XERO_SESSION_KEY"

const MIN_SECRET_LENGTH = 32

var hkdfInfo = []byte("xeroreports session cookies v1")

var errCiphertext = errors.New("malformed ciphertext")

// Cipher seals session payloads with XChaCha20-Poly1305 under a key derived from the secret.
type Cipher struct {
	key []byte
}

func NewCipher(secret string) (Cipher, error) {
	if len(secret) < MIN_SECRET_LENGTH {
		return Cipher{}, fmt.Errorf("session secret must be at least %d characters", MIN_SECRET_LENGTH)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	_, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key)
	if err != nil {
		return Cipher{}, err
	}
	return Cipher{key: key}, nil
}

// NewCipherFromEnv reads the secret from XERO_SESSION_KEY.
func NewCipherFromEnv() (Cipher, error) {
	secret := os.Getenv(ENV_SESSION_KEY)
	if secret == "" {
		return Cipher{}, fmt.Errorf("%s is not set", ENV_SESSION_KEY)
	}
	return NewCipher(secret)
}

// GenerateSecret returns a random secret suitable for XERO_SESSION_KEY.
func GenerateSecret() (string, error) {
	buff := make([]byte, 32)
	_, err := rand.Read(buff)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buff), nil
}

// Encrypt returns base64(nonce || sealed).
func (c Cipher) Encrypt(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	_, err = rand.Read(nonce)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c Cipher) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCiphertext, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, errCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
