package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// FetcherConfig controls the outgoing HTTP traffic of a run.
type FetcherConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgents         []string
}

// Fetcher performs single GET requests that look like a desktop browser.
// It does not retry; wrap it in a Retrier.
type Fetcher struct {
	client     *http.Client
	userAgents []string
	logger     *slog.Logger

	mu   sync.Mutex
	next int
}

// NewFetcher builds a fetcher with its own transport.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		logger.Warn("TLS certificate verification is disabled for scraping requests.")
	}
	return NewFetcherWithClient(&http.Client{Timeout: cfg.Timeout, Transport: transport}, cfg.UserAgents, logger)
}

// NewFetcherWithClient is NewFetcher with a caller-supplied client.
func NewFetcherWithClient(client *http.Client, userAgents []string, logger *slog.Logger) *Fetcher {
	if len(userAgents) == 0 {
		userAgents = []string{"Mozilla/5.0"}
	}
	return &Fetcher{client: client, userAgents: userAgents, logger: logger}
}

// Get fetches url and returns the body. Non-2xx responses are returned as *FetchError.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{
			URL:       url,
			Status:    resp.StatusCode,
			Challenge: isChallenge(resp),
			Err:       fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return body, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")
}

func (f *Fetcher) userAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua := f.userAgents[f.next%len(f.userAgents)]
	f.next++
	return ua
}

// isChallenge recognises Cloudflare-style interstitials. They are reported, never bypassed.
func isChallenge(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	if strings.EqualFold(resp.Header.Get("Cf-Mitigated"), "challenge") {
		return true
	}
	return strings.EqualFold(resp.Header.Get("Server"), "cloudflare")
}
