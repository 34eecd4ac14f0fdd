// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// RefLatest resolves to the newest release, pre-release or not.
	RefLatest = "latest"
	// RefLatestStable resolves to the newest non-pre-release.
	RefLatestStable = "latest-stable"

	// defaultReleasesURL is the releases feed endpoint. The feed is a JSON
	// array of releases, newest first.
	defaultReleasesURL = "https://api.github.com/repos/kubenow/kn/releases"

	// defaultRawBaseURL is the raw-content base the per-ref kn build is
	// fetched from.
	defaultRawBaseURL = "https://raw.githubusercontent.com/kubenow/kn"

	// maxJSONResponseBytes is the upper bound on the feed response size
	// (10 MB). Prevents unbounded memory consumption from malformed
	// responses.
	maxJSONResponseBytes = 10 << 20
)

var (
	// ErrEmptyFeed is returned when the releases feed has no entries.
	ErrEmptyFeed = errors.New("releases feed is empty")

	// ErrNoStableRelease is returned when the feed carries no
	// non-pre-release entry.
	ErrNoStableRelease = errors.New("releases feed has no stable release")
)

type (
	// Release is one entry of the releases feed.
	Release struct {
		TagName    string `json:"tag_name"`
		Prerelease bool   `json:"prerelease"`
	}

	// NetworkError is returned when a feed or download request fails.
	// Upgrades abort on it with the running executable untouched.
	NetworkError struct {
		URL string
		Err error
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)

	// Client talks to the release feed and the raw-content host.
	Client struct {
		httpClient  *http.Client
		releasesURL string
		rawBaseURL  string
		userAgent   string
	}
)

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error { return e.Err }

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy
// configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithReleasesURL overrides the releases feed endpoint, primarily for test
// servers.
func WithReleasesURL(u string) ClientOption {
	return func(cl *Client) {
		cl.releasesURL = strings.TrimRight(u, "/")
	}
}

// WithRawBaseURL overrides the raw-content base URL, primarily for test
// servers.
func WithRawBaseURL(u string) ClientOption {
	return func(cl *Client) {
		cl.rawBaseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a Client with the production endpoints.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		releasesURL: defaultReleasesURL,
		rawBaseURL:  defaultRawBaseURL,
		userAgent:   "kn/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListReleases fetches the releases feed. Entries arrive newest first; no
// client-side reordering is applied.
func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	resp, err := c.get(ctx, c.releasesURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: c.releasesURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var releases []Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&releases); err != nil {
		return nil, &NetworkError{URL: c.releasesURL, Err: fmt.Errorf("decoding feed: %w", err)}
	}

	return releases, nil
}

// ResolveRef maps a requested version token to a concrete branch or tag
// name: RefLatest is the feed's first entry, RefLatestStable the first
// entry whose prerelease field is false, and anything else is used
// verbatim.
func (c *Client) ResolveRef(ctx context.Context, token string) (string, error) {
	switch token {
	case RefLatest:
		releases, err := c.ListReleases(ctx)
		if err != nil {
			return "", err
		}
		if len(releases) == 0 {
			return "", ErrEmptyFeed
		}
		return releases[0].TagName, nil

	case RefLatestStable:
		releases, err := c.ListReleases(ctx)
		if err != nil {
			return "", err
		}
		for _, r := range releases {
			if !r.Prerelease {
				return r.TagName, nil
			}
		}
		return "", ErrNoStableRelease

	default:
		return token, nil
	}
}

// FetchRef downloads the kn build published for ref. A random cache-busting
// query parameter defeats stale intermediary caches on the raw-content
// host. The caller is responsible for closing the returned ReadCloser.
func (c *Client) FetchRef(ctx context.Context, ref string) (io.ReadCloser, error) {
	fetchURL := fmt.Sprintf("%s/%s/bin/kn?nocache=%s", c.rawBaseURL, url.PathEscape(ref), rand.Text())

	resp, err := c.get(ctx, fetchURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &NetworkError{URL: fetchURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return resp.Body, nil
}

// get executes a GET request with the client's common headers.
func (c *Client) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &NetworkError{URL: reqURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: reqURL, Err: err}
	}
	return resp, nil
}
