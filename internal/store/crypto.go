package store

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of a room key
const KeySize = chacha20poly1305.KeySize

// sealedVersion is prepended to every sealed blob and bound as AAD, so
// tampering with it fails authentication
const sealedVersion byte = 0x01

// Key is a symmetric room key. Content is decryptable only by holders
// of the room's key; the store itself never logs or persists it.
type Key [KeySize]byte

// NewKey generates a fresh random room key
func NewKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("generate room key: %w", err)
	}
	return k, nil
}

// Seal encrypts content with the room key.
// Blob layout: version byte, XChaCha20-Poly1305 nonce, ciphertext+tag.
func Seal(key Key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	blob[0] = sealedVersion
	if _, err := rand.Read(blob[1 : 1+aead.NonceSize()]); err != nil {
		return nil, err
	}

	return aead.Seal(blob, blob[1:1+aead.NonceSize()], plaintext, blob[:1]), nil
}

// Open decrypts a sealed blob with the room key
func Open(key Key, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}

	if len(blob) < 1+aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("sealed blob too short: %d bytes", len(blob))
	}
	if blob[0] != sealedVersion {
		return nil, fmt.Errorf("unknown sealed blob version: %d", blob[0])
	}

	nonce := blob[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, blob[1+aead.NonceSize():], blob[:1])
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}
	return plaintext, nil
}
