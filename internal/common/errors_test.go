package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldError_MatchesBadRequest(t *testing.T) {
	err := NewFieldError("recipientKeys[1].keyAuthTag", "chunks[0].iv")

	assert.True(t, errors.Is(err, ErrorBadRequest))
	assert.False(t, errors.Is(err, ErrorNotFound))
	assert.Contains(t, err.Error(), "recipientKeys[1].keyAuthTag")
	assert.Contains(t, err.Error(), "chunks[0].iv")
}

func TestFieldError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("finalize: %w", NewFieldError("chunks"))

	require.True(t, errors.Is(err, ErrorBadRequest))

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"chunks"}, fe.Fields)
}

func TestIncompleteUploadError(t *testing.T) {
	err := &IncompleteUploadError{Received: 4, Total: 5}

	assert.Equal(t, 1, err.Missing())
	assert.Contains(t, err.Error(), "4/5")

	wrapped := fmt.Errorf("finalize: %w", err)
	var ie *IncompleteUploadError
	require.True(t, errors.As(wrapped, &ie))
	assert.Equal(t, 5, ie.Total)
}
