package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

var fetchClient = &http.Client{Timeout: 30 * time.Second}

// FetchURL downloads a remote resource and returns its body together
// with the reported size and content type. The caller must close the
// body. Size is -1 when the server did not report one.
func FetchURL(ctx context.Context, url string) (body io.ReadCloser, size int64, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, "", fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, resp.Header.Get("Content-Type"), nil
}
