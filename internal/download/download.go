// Package download fetches remote files with a hard size cap, mirroring the
// bounded-download guard the original pipeline applies before hashing any
// URL it did not receive directly from the chat platform.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ErrTooLarge is returned when the remote response exceeds the configured cap.
var ErrTooLarge = fmt.Errorf("download: response exceeds size cap")

// Bounded fetches url's body, refusing to read past maxBytes. Callers that
// hit ErrTooLarge should skip the URL rather than treat it as a hard failure:
// an oversized or malformed response is evidence to ignore, not an error to
// propagate.
func Bounded(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %d for %s", resp.StatusCode, url)
	}

	if resp.ContentLength > maxBytes {
		return nil, ErrTooLarge
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
