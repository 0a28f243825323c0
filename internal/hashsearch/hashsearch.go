// Package hashsearch looks up posts by perceptual hash against the shared
// reverse-image-search index, the thin HTTP client grounding for the source
// resolver's first step.
package hashsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/foxden/sourcewatch/internal/siteadapter"
)

// Match is a single candidate source returned for a searched hash. Distance
// is a pointer because the index omits it entirely for matches it considers
// out of range; a missing distance must not be mistaken for a distance of 0.
type Match struct {
	Site     siteadapter.Site `json:"site"`
	URL      string           `json:"url"`
	Hash     uint64           `json:"hash"`
	Distance *uint64          `json:"distance"`
	Rating   string           `json:"rating"`
}

// Client queries the hash index over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a Client against baseURL, authenticating with token.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, httpClient: httpClient}
}

// SearchByHash returns candidate matches within maxDistance of hash, sorted
// by the index's own relevance order.
func (c *Client) SearchByHash(ctx context.Context, hash uint64, maxDistance uint64) ([]Match, error) {
	q := url.Values{}
	q.Set("hash", strconv.FormatUint(hash, 10))
	q.Set("distance", strconv.FormatUint(maxDistance, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/hashes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hashsearch: unexpected status %d", resp.StatusCode)
	}

	var matches []Match
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, err
	}
	return matches, nil
}
