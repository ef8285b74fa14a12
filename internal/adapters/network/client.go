// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package network implements the HTTP side of fetching runtimes and indexes.
package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/schollz/progressbar/v3"
)

const (
	// UserAgent is sent with every request.
	UserAgent = "nvmw"

	// DefaultMaxRedirects bounds the redirect chain of a single download.
	DefaultMaxRedirects = 5

	// legacyNPMArchive is the one archive path whose multiple-choice
	// response is answered with a fixed tag URL.
	legacyNPMArchive    = "/npm/cli/archive/v6.14.17.zip"
	legacyNPMArchiveTag = "https://github.com/npm/cli/archive/refs/tags/v6.14.17.zip"

	diagnosticBodyLimit = 64 << 10
)

// Options configures an HTTPClient.
type Options struct {
	Proxy        *url.URL
	VerifyTLS    bool
	Timeout      time.Duration
	MaxRedirects int
	// Progress receives a progress bar for downloads when non-nil.
	Progress io.Writer
	Logger   *log.Logger
}

// HTTPClient implements domain.Downloader.
type HTTPClient struct {
	client       *http.Client
	manual       *http.Client
	maxRedirects int
	progress     io.Writer
	logger       *log.Logger
}

type hopKey struct{}

// hopBudget is shared by the transport-level redirects and the explicit
// multiple-choice recursion of one download.
type hopBudget struct {
	used int
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(opts Options) *HTTPClient {
	proxy := http.ProxyFromEnvironment
	if opts.Proxy != nil {
		proxy = http.ProxyURL(opts.Proxy)
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	c := &HTTPClient{
		maxRedirects: maxRedirects,
		progress:     opts.Progress,
		logger:       console.OrDiscard(opts.Logger),
	}

	transport := &http.Transport{
		Proxy: proxy,
		// #nosec G402 -- disabling verification is an explicit user choice (--insecure)
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: !opts.VerifyTLS},
		ForceAttemptHTTP2: true,
	}

	c.client = &http.Client{
		Timeout:       opts.Timeout,
		Transport:     transport,
		CheckRedirect: c.checkRedirect,
	}

	// Downloads classify every redirect themselves.
	c.manual = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

func (c *HTTPClient) checkRedirect(req *http.Request, via []*http.Request) error {
	budget, _ := req.Context().Value(hopKey{}).(*hopBudget)
	if budget == nil {
		budget = &hopBudget{}
	}

	budget.used++
	if budget.used > c.maxRedirects {
		return fmt.Errorf("%w: gave up after %d hops at %s", domain.ErrTooManyRedirects, c.maxRedirects, req.URL)
	}

	c.logger.Debug("Following redirect", "from", via[len(via)-1].URL.String(), "to", req.URL.String())

	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)

	return req, nil
}

func (c *HTTPClient) do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyRedirects) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, req.URL, err)
	}

	return resp, nil
}

// Exists performs a HEAD request and reports whether the final status is 200.
func (c *HTTPClient) Exists(ctx context.Context, rawURL string) bool {
	req, err := c.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return false
	}

	resp, err := c.do(c.client, req.WithContext(context.WithValue(ctx, hopKey{}, &hopBudget{})))
	if err != nil {
		c.logger.Debug("HEAD failed", "url", rawURL, "error", err)

		return false
	}

	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// GetBytes fetches a small document and fails on any non-200 status.
func (c *HTTPClient) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(c.client, req.WithContext(context.WithValue(ctx, hopKey{}, &hopBudget{})))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned %d", domain.ErrHTTPStatus, rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrNetworkFailure, rawURL, err)
	}

	return data, nil
}

// GetText fetches a text document.
func (c *HTTPClient) GetText(ctx context.Context, rawURL string) (string, error) {
	data, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Download fetches rawURL into destPath.
//
// Every response is classified here, the transport follows nothing. 200
// is final. 302, 301, 303 and 308 end at the body their Location serves.
// 300 is followed when Location names a different URL (with one fixed
// legacy substitution) and fails otherwise. 307 is followed. Any other
// status carrying a Location removes destPath and fails. Without a
// Location the body is final unless the status is 4xx or 5xx. The whole
// chain is bounded by MaxRedirects.
func (c *HTTPClient) Download(ctx context.Context, rawURL, destPath string) error {
	return c.download(ctx, rawURL, destPath, &hopBudget{})
}

func (c *HTTPClient) download(ctx context.Context, rawURL, destPath string, budget *hopBudget) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}

	c.logger.Debug("Downloading", "url", rawURL, "dest", destPath)

	resp, err := c.do(c.manual, req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	location := resp.Header.Get("Location")

	if location != "" {
		switch resp.StatusCode {
		case http.StatusOK:
			return c.writeBody(resp, destPath)
		case http.StatusFound, http.StatusMovedPermanently, http.StatusSeeOther, http.StatusPermanentRedirect:
			next := resolveLocation(rawURL, location)
			c.logger.Debug("Following redirect", "status", resp.StatusCode, "to", next)

			return c.follow(ctx, next, destPath, budget)
		case http.StatusMultipleChoices:
			if location != rawURL {
				return c.follow(ctx, resolveLocation(rawURL, location), destPath, budget)
			}

			if strings.Contains(location, legacyNPMArchive) {
				return c.follow(ctx, legacyNPMArchiveTag, destPath, budget)
			}

			c.logDiagnostics(rawURL, resp)

			return fmt.Errorf("%w: %s answered %d pointing at itself", domain.ErrRedirectFailure, rawURL, resp.StatusCode)
		case http.StatusTemporaryRedirect:
			next := resolveLocation(rawURL, location)
			c.logger.Info("Redirecting", "to", next)

			return c.follow(ctx, next, destPath, budget)
		default:
			_ = os.Remove(destPath)

			return fmt.Errorf("%w: %s returned %d", domain.ErrHTTPStatus, rawURL, resp.StatusCode)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		_ = os.Remove(destPath)

		return fmt.Errorf("%w: %s returned %d", domain.ErrHTTPStatus, rawURL, resp.StatusCode)
	}

	return c.writeBody(resp, destPath)
}

func (c *HTTPClient) follow(ctx context.Context, next, destPath string, budget *hopBudget) error {
	budget.used++
	if budget.used > c.maxRedirects {
		return fmt.Errorf("%w: gave up after %d hops at %s", domain.ErrTooManyRedirects, c.maxRedirects, next)
	}

	return c.download(ctx, next, destPath, budget)
}

func resolveLocation(base, location string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return location
	}

	ref, err := url.Parse(location)
	if err != nil {
		return location
	}

	return baseURL.ResolveReference(ref).String()
}

func (c *HTTPClient) writeBody(resp *http.Response, destPath string) error {
	partPath := destPath + ".part"

	// #nosec G304 -- destPath is built by the fetcher inside the configured root
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	var dst io.Writer = out

	if c.progress != nil {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(" "+filepath.Base(destPath)),
			progressbar.OptionSetWriter(c.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		defer func() { _ = bar.Finish() }()

		dst = io.MultiWriter(out, bar)
	}

	_, copyErr := io.Copy(dst, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(partPath)

		return fmt.Errorf("%w: failed to write %s: %w", domain.ErrNetworkFailure, destPath, copyErr)
	}

	if closeErr != nil {
		_ = os.Remove(partPath)

		return fmt.Errorf("failed to close %s: %w", partPath, closeErr)
	}

	if err := os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)

		return fmt.Errorf("failed to move download into place: %w", err)
	}

	return nil
}

func (c *HTTPClient) logDiagnostics(rawURL string, resp *http.Response) {
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	headers := make([]string, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, k+": "+strings.Join(resp.Header.Values(k), ", "))
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, diagnosticBodyLimit))

	c.logger.Error("Remote server failure",
		"url", rawURL,
		"status", resp.StatusCode,
		"headers", strings.Join(headers, "; "),
		"body", string(body))
}
