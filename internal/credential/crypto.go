package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// codec encrypts and decrypts credential secret material with AES-256-GCM.
//
// Why standard library and not a third-party crypto package: none of the
// example repos in the retrieval pack import a symmetric-encryption
// library (no age, nacl/secretbox, or similar wrapper appears anywhere in
// the corpus), and Go's crypto/aes + crypto/cipher GCM construction is the
// idiomatic, audited way to do authenticated symmetric encryption without
// inventing a dependency the pack never demonstrates. See DESIGN.md.
type codec struct {
	key [32]byte
}

func newCodec(key []byte) (*codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}
	c := &codec{}
	copy(c.key[:], key)
	return c, nil
}

// encrypt returns base64(nonce || ciphertext || tag).
func (c *codec) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("credential: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("credential: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("credential: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt reverses encrypt. A wrong key, corrupted ciphertext, or forged
// tag all surface as ErrDecryptFailed — never a specific crypto error,
// since that distinction is not actionable to the caller.
func (c *codec) decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptFailed
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("credential: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("credential: new gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrDecryptFailed
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
