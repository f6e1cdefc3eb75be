// Package cryptox implements the client-side cryptography for chunked file
// uploads: per-chunk AES-GCM encryption under keys derived from a random file
// key, and per-recipient wrapping of that file key so every conversation
// participant can decrypt without a shared secret ever travelling in the
// clear. The server never uses this package to decrypt anything; it exists
// for the uploader CLI and for tests that need realistic ciphertext and
// metadata.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	fileKeySize  = 32
	gcmNonceSize = 12
	gcmTagSize   = 16
)

var ErrInvalidWrappedKey = errors.New("invalid wrapped key")

// NewFileKey returns a fresh random 256-bit file key.
func NewFileKey() ([]byte, error) {
	key := make([]byte, fileKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveChunkKey derives the AES key for one chunk from the file key using
// HKDF-SHA256. Binding the chunk index into the info string keeps a
// ciphertext chunk from being replayed at a different position.
func DeriveChunkKey(fileKey []byte, index int) ([]byte, error) {
	info := []byte{'c', 'h', 'u', 'n', 'k', byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)}
	r := hkdf.New(sha256.New, fileKey, nil, info)
	key := make([]byte, fileKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptedChunk is one chunk's ciphertext plus the metadata the server
// stores verbatim: the GCM nonce (iv), the GCM tag, and an HMAC over the
// ciphertext that can be checked without the AEAD key.
type EncryptedChunk struct {
	Ciphertext []byte
	IV         []byte
	GCMAuthTag []byte
	AuthTag    []byte
}

// EncryptChunk encrypts one plaintext chunk under the given chunk key.
func EncryptChunk(key, plaintext []byte) (*EncryptedChunk, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	sealed := aesgcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	gcmTag := sealed[len(sealed)-gcmTagSize:]

	mac := hmac.New(sha256.New, key)
	mac.Write(ciphertext)

	return &EncryptedChunk{
		Ciphertext: ciphertext,
		IV:         iv,
		GCMAuthTag: gcmTag,
		AuthTag:    mac.Sum(nil),
	}, nil
}

// DecryptChunk reverses EncryptChunk, verifying both tags.
func DecryptChunk(key []byte, c *EncryptedChunk) ([]byte, error) {
	mac := hmac.New(sha256.New, key)
	mac.Write(c.Ciphertext)
	if !hmac.Equal(mac.Sum(nil), c.AuthTag) {
		return nil, errors.New("chunk auth tag mismatch")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := append(append([]byte{}, c.Ciphertext...), c.GCMAuthTag...)
	return aesgcm.Open(nil, c.IV, sealed, nil)
}

// WrappedKey is the file key encrypted for one recipient.
//
// Encrypted begins with the sender's ephemeral X25519 public key so the
// recipient can recompute the shared secret; the remainder is the AES-GCM
// ciphertext of the file key.
type WrappedKey struct {
	Encrypted []byte
	KeyIV     []byte
	KeyTag    []byte
}

// WrapFileKey encrypts fileKey for the holder of recipientPub. A fresh
// ephemeral X25519 key pair is used per recipient, and the wrapping key is
// derived from the ECDH shared secret with HKDF-SHA256.
func WrapFileKey(fileKey []byte, recipientPub *ecdh.PublicKey) (*WrappedKey, error) {
	eph, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	shared, err := eph.ECDH(recipientPub)
	if err != nil {
		return nil, err
	}

	wrapKey := make([]byte, fileKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte("file-key-wrap")), wrapKey); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	sealed := aesgcm.Seal(nil, iv, fileKey, nil)
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return &WrappedKey{
		Encrypted: append(append([]byte{}, eph.PublicKey().Bytes()...), ct...),
		KeyIV:     iv,
		KeyTag:    tag,
	}, nil
}

// UnwrapFileKey recovers the file key wrapped by WrapFileKey.
func UnwrapFileKey(w *WrappedKey, recipientPriv *ecdh.PrivateKey) ([]byte, error) {
	pubLen := len(recipientPriv.PublicKey().Bytes())
	if len(w.Encrypted) <= pubLen {
		return nil, ErrInvalidWrappedKey
	}

	ephPub, err := ecdh.X25519().NewPublicKey(w.Encrypted[:pubLen])
	if err != nil {
		return nil, err
	}

	shared, err := recipientPriv.ECDH(ephPub)
	if err != nil {
		return nil, err
	}

	wrapKey := make([]byte, fileKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, []byte("file-key-wrap")), wrapKey); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := append(append([]byte{}, w.Encrypted[pubLen:]...), w.KeyTag...)
	return aesgcm.Open(nil, w.KeyIV, sealed, nil)
}
