package cryptox

import (
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptChunk_RoundTrip(t *testing.T) {
	fileKey, err := NewFileKey()
	require.NoError(t, err)

	key, err := DeriveChunkKey(fileKey, 3)
	require.NoError(t, err)

	plaintext := []byte("hundred bytes of extremely secret chat attachment data")
	enc, err := EncryptChunk(key, plaintext)
	require.NoError(t, err)

	assert.Len(t, enc.IV, 12)
	assert.Len(t, enc.GCMAuthTag, 16)
	assert.Len(t, enc.AuthTag, 32)
	assert.NotEqual(t, plaintext, enc.Ciphertext)

	got, err := DecryptChunk(key, enc)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptChunk_TamperedCiphertext(t *testing.T) {
	key, err := DeriveChunkKey(mustFileKey(t), 0)
	require.NoError(t, err)

	enc, err := EncryptChunk(key, []byte("payload"))
	require.NoError(t, err)

	enc.Ciphertext[0] ^= 0xff
	_, err = DecryptChunk(key, enc)
	require.Error(t, err)
}

func TestDeriveChunkKey_DistinctPerIndex(t *testing.T) {
	fileKey := mustFileKey(t)

	k0, err := DeriveChunkKey(fileKey, 0)
	require.NoError(t, err)
	k1, err := DeriveChunkKey(fileKey, 1)
	require.NoError(t, err)

	assert.NotEqual(t, k0, k1)
}

func TestWrapUnwrapFileKey(t *testing.T) {
	fileKey := mustFileKey(t)

	recipient, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	w, err := WrapFileKey(fileKey, recipient.PublicKey())
	require.NoError(t, err)

	got, err := UnwrapFileKey(w, recipient)
	require.NoError(t, err)
	assert.Equal(t, fileKey, got)
}

func TestUnwrapFileKey_WrongRecipient(t *testing.T) {
	fileKey := mustFileKey(t)

	alice, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	mallory, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	w, err := WrapFileKey(fileKey, alice.PublicKey())
	require.NoError(t, err)

	_, err = UnwrapFileKey(w, mallory)
	require.Error(t, err)
}

func TestUnwrapFileKey_Truncated(t *testing.T) {
	recipient, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = UnwrapFileKey(&WrappedKey{Encrypted: []byte{1, 2, 3}}, recipient)
	require.ErrorIs(t, err, ErrInvalidWrappedKey)
}

func mustFileKey(t *testing.T) []byte {
	t.Helper()
	key, err := NewFileKey()
	require.NoError(t, err)
	return key
}
