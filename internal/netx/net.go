// Package netx holds the one network helper the uploader needs: a raw PUT
// to a presigned object-storage URL.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// UploadToS3PresignedURL PUTs body to a presigned URL and returns the ETag
// the storage backend assigned to the part. The ETag is what a multipart
// completion call needs for each part.
func UploadToS3PresignedURL(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(body))

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return resp.Header.Get("ETag"), nil
}
