package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrHostNotAllowed is returned for URLs outside the fetcher's allowlist.
var ErrHostNotAllowed = errors.New("host not allowed")

// HTTPFetcher implements port.ImageFetcher with a size cap and an optional
// host allowlist.
type HTTPFetcher struct {
	httpClient   *http.Client
	maxBytes     int64
	allowedHosts []string
}

// NewHTTPFetcher creates a fetcher that refuses bodies larger than maxBytes.
// With allowedHosts set, only those hosts and their subdomains are fetched,
// redirects included.
func NewHTTPFetcher(maxBytes int64, allowedHosts ...string) *HTTPFetcher {
	f := &HTTPFetcher{maxBytes: maxBytes}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.Trim(strings.TrimSpace(h), ".")); h != "" {
			f.allowedHosts = append(f.allowedHosts, h)
		}
	}
	f.httpClient = &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return f.checkURL(req.URL)
		},
	}
	return f
}

// Fetch downloads the resource at rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch image: larger than %d bytes", f.maxBytes)
	}
	return data, nil
}

func (f *HTTPFetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("fetch image: unsupported scheme %q", u.Scheme)
	}
	if len(f.allowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range f.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("fetch image: %w: %s", ErrHostNotAllowed, host)
}
