package uploads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

func TestValidateRecipientKeys(t *testing.T) {
	tests := []struct {
		name   string
		keys   []models.RecipientKey
		fields []string
	}{
		{
			name:   "empty list",
			keys:   nil,
			fields: []string{"recipientKeys"},
		},
		{
			name: "valid pair",
			keys: validMetadata().RecipientKeys,
		},
		{
			name: "missing entry fields",
			keys: []models.RecipientKey{
				{UserID: "u1", EncryptedSymmetricKey: "k", KeyIV: "iv", KeyAuthTag: "tag"},
				{UserID: "u2"},
			},
			fields: []string{
				"recipientKeys[1].encryptedSymmetricKey",
				"recipientKeys[1].keyIv",
				"recipientKeys[1].keyAuthTag",
			},
		},
		{
			name: "duplicate recipient",
			keys: []models.RecipientKey{
				{UserID: "u1", EncryptedSymmetricKey: "k", KeyIV: "iv", KeyAuthTag: "tag"},
				{UserID: "u1", EncryptedSymmetricKey: "k", KeyIV: "iv", KeyAuthTag: "tag"},
			},
			fields: []string{"recipientKeys[1].userId (duplicate)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRecipientKeys(tt.keys)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			var fe *common.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.fields, fe.Fields)
		})
	}
}

func TestValidateChunkMeta(t *testing.T) {
	chunks := metadataWithChunks(3).Chunks
	assert.NoError(t, validateChunkMeta(chunks))

	chunks[1].GCMAuthTag = ""
	chunks[2].IV = ""
	err := validateChunkMeta(chunks)
	var fe *common.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"chunks[1].gcmAuthTag", "chunks[2].iv"}, fe.Fields)
}

func TestValidateMetadata_OrderOfChecks(t *testing.T) {
	// Top-level holes mask entry-level ones.
	err := validateMetadata(models.EncryptionMetadata{})
	var fe *common.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"chunks", "recipientKeys"}, fe.Fields)

	// Recipient problems are reported before chunk problems.
	meta := metadataWithChunks(1)
	meta.RecipientKeys[0].KeyIV = ""
	meta.Chunks[0].AuthTag = ""
	err = validateMetadata(meta)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"recipientKeys[0].keyIv"}, fe.Fields)

	assert.NoError(t, validateMetadata(metadataWithChunks(2)))
}
