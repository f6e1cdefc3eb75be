// Package filex holds file helpers for the uploader client: fixed-size
// chunk splitting and mime sniffing.
package filex

import (
	"net/http"
	"os"
)

// SplitChunks cuts data into chunkSize-byte slices; the last chunk carries
// the remainder. The returned slices alias data.
func SplitChunks(data []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 || len(data) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(data)+chunkSize-1)/chunkSize)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// ChunkCount returns how many chunkSize-byte chunks cover size bytes.
func ChunkCount(size, chunkSize int64) int {
	if chunkSize <= 0 || size <= 0 {
		return 0
	}
	n := size / chunkSize
	if size%chunkSize != 0 {
		n++
	}
	return int(n)
}

// DetectContentType sniffs the mime type from the first 512 bytes of the
// file, falling back to application/octet-stream.
func DetectContentType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}
