package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// cipherPrefix tags values written by CardCipher.  Values without it are
// legacy plaintext rows and are passed through on read.
const cipherPrefix = "v1:"

// ErrBadKey is returned when the configured key is not 32 bytes.
var ErrBadKey = errors.New("payment key must decode to 32 bytes (hex or base64)")

// CardCipher encrypts payment fields (provider token, last4) with
// XChaCha20-Poly1305.  Each value gets a fresh random nonce which is stored
// in front of the ciphertext.
type CardCipher struct {
	key []byte
}

// NewCardCipher decodes a 32-byte key given as hex or standard base64.
func NewCardCipher(encoded string) (*CardCipher, error) {
	encoded = strings.TrimSpace(encoded)
	key, err := hex.DecodeString(encoded)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		key, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, ErrBadKey
		}
	}
	return &CardCipher{key: key}, nil
}

// Encrypt seals plain.  Empty input stays empty so NULL-ish columns remain
// recognisable.
func (c *CardCipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return cipherPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *CardCipher) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, cipherPrefix) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, cipherPrefix))
	if err != nil {
		return "", fmt.Errorf("decode payment field: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("payment field too short")
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("open payment field: %w", err)
	}
	return string(plain), nil
}
