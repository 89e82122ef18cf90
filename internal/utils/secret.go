package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// EncryptedPrefix marks a database_cred password stored as base64 AES-GCM.
const EncryptedPrefix = "enc:"

// KeyEnv is consulted when no key is configured.
const KeyEnv = "ETL_ENC_KEY"

// Cipher seals and opens credential secrets with a 32-byte AES key.
type Cipher struct {
	key []byte
}

// NewCipher decodes a base64 key. An empty key falls back to ETL_ENC_KEY;
// if that is unset too the cipher only passes plain secrets through.
func NewCipher(b64 string) (*Cipher, error) {
	if b64 == "" {
		b64 = os.Getenv(KeyEnv)
	}
	if b64 == "" {
		return &Cipher{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 key")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes")
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	if len(c.key) == 0 {
		return nil, errors.New("encryption key not set")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns the enc:-prefixed form of plain.
func (c *Cipher) Encrypt(plain string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Reveal returns the usable secret: enc:-prefixed values are decrypted,
// anything else is returned as is.
func (c *Cipher) Reveal(stored string) (string, error) {
	if !strings.HasPrefix(stored, EncryptedPrefix) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, EncryptedPrefix))
	if err != nil {
		return "", errors.Wrap(err, "decode secret")
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "decrypt secret")
	}
	return string(plain), nil
}
