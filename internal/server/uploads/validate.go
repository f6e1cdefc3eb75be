package uploads

import (
	"fmt"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/common"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/models"
)

// validateRecipientKeys enforces that the recipient list is non-empty, that
// every entry is fully populated, and that no recipient appears twice. Each
// problem is reported by its full field path so the client can repair the
// payload entry by entry.
func validateRecipientKeys(keys []models.RecipientKey) error {
	if len(keys) == 0 {
		return common.NewFieldError("recipientKeys")
	}

	var missing []string
	seen := make(map[string]struct{}, len(keys))

	for i, k := range keys {
		if k.UserID == "" {
			missing = append(missing, fmt.Sprintf("recipientKeys[%d].userId", i))
		} else if _, dup := seen[k.UserID]; dup {
			missing = append(missing, fmt.Sprintf("recipientKeys[%d].userId (duplicate)", i))
		} else {
			seen[k.UserID] = struct{}{}
		}
		if k.EncryptedSymmetricKey == "" {
			missing = append(missing, fmt.Sprintf("recipientKeys[%d].encryptedSymmetricKey", i))
		}
		if k.KeyIV == "" {
			missing = append(missing, fmt.Sprintf("recipientKeys[%d].keyIv", i))
		}
		if k.KeyAuthTag == "" {
			missing = append(missing, fmt.Sprintf("recipientKeys[%d].keyAuthTag", i))
		}
	}

	if len(missing) > 0 {
		return common.NewFieldError(missing...)
	}
	return nil
}

// validateChunkMeta enforces that every per-chunk entry carries all three
// cryptographic fields.
func validateChunkMeta(chunks []models.ChunkMeta) error {
	var missing []string

	for i, c := range chunks {
		if c.IV == "" {
			missing = append(missing, fmt.Sprintf("chunks[%d].iv", i))
		}
		if c.AuthTag == "" {
			missing = append(missing, fmt.Sprintf("chunks[%d].authTag", i))
		}
		if c.GCMAuthTag == "" {
			missing = append(missing, fmt.Sprintf("chunks[%d].gcmAuthTag", i))
		}
	}

	if len(missing) > 0 {
		return common.NewFieldError(missing...)
	}
	return nil
}

// validateMetadata runs the metadata preconditions in their documented
// order: top-level presence, recipient entries, chunk entries. Both
// finalize variants gate on it, so a file record can never be persisted
// with a chunk entry missing any of its cryptographic fields.
func validateMetadata(meta models.EncryptionMetadata) error {
	var missing []string
	if len(meta.Chunks) == 0 {
		missing = append(missing, "chunks")
	}
	if len(meta.RecipientKeys) == 0 {
		missing = append(missing, "recipientKeys")
	}
	if len(missing) > 0 {
		return common.NewFieldError(missing...)
	}

	if err := validateRecipientKeys(meta.RecipientKeys); err != nil {
		return err
	}
	return validateChunkMeta(meta.Chunks)
}
