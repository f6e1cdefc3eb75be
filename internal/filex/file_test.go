package filex

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		chunkSize int
		want      [][]byte
	}{
		{name: "even split", data: []byte("aabbcc"), chunkSize: 2,
			want: [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}},
		{name: "remainder in last chunk", data: []byte("aabbc"), chunkSize: 2,
			want: [][]byte{[]byte("aa"), []byte("bb"), []byte("c")}},
		{name: "single chunk", data: []byte("ab"), chunkSize: 10,
			want: [][]byte{[]byte("ab")}},
		{name: "empty data", data: nil, chunkSize: 2, want: nil},
		{name: "invalid chunk size", data: []byte("ab"), chunkSize: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitChunks(tt.data, tt.chunkSize)
			require.Equal(t, tt.want, got)

			// Concatenating chunks restores the input.
			if got != nil {
				assert.Equal(t, tt.data, bytes.Join(got, nil))
			}
		})
	}
}

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 3, ChunkCount(6, 2))
	assert.Equal(t, 4, ChunkCount(7, 2))
	assert.Equal(t, 1, ChunkCount(1, 100))
	assert.Equal(t, 0, ChunkCount(0, 2))
	assert.Equal(t, 0, ChunkCount(5, 0))
}

func TestDetectContentType(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	assert.Equal(t, "image/png", DetectContentType(png))

	assert.Equal(t, "application/octet-stream", DetectContentType(filepath.Join(dir, "missing")))
}
