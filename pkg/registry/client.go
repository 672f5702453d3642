// Package registry talks to the remote services the manager depends on: the
// mod catalog, the GitHub release listings of the frameworks, and plain
// archive downloads.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	apperrors "github.com/huanfeng/entwine-cli/internal/errors"
	"github.com/huanfeng/entwine-cli/pkg/models"
	"github.com/huanfeng/entwine-cli/pkg/utils"
)

const (
	DefaultBaseURL    = "https://silk.abstractmelon.net"
	DefaultCatalogURL = DefaultBaseURL + "/api/mods"
	DefaultGitHubAPI  = "https://api.github.com"

	// maxJSONResponseBytes bounds catalog and release listings.
	maxJSONResponseBytes = 10 << 20
	// maxDownloadBytes bounds a single archive or mod download.
	maxDownloadBytes = 1 << 30
)

// Config holds the endpoints and timeouts of the client.
type Config struct {
	BaseURL         string
	CatalogURL      string
	GitHubAPI       string
	Timeout         time.Duration
	DownloadTimeout time.Duration
	UserAgent       string
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		CatalogURL:      DefaultCatalogURL,
		GitHubAPI:       DefaultGitHubAPI,
		Timeout:         30 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		UserAgent:       "Entwine-CLI/1.0",
	}
}

// Client performs bounded, non-retrying requests. Transfer failures surface
// as NETWORK errors so the caller owns the retry policy; failures writing the
// local copy are FILE_SYSTEM errors.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *CacheManager
	logger     utils.Logger
	progress   io.Writer
	createTemp func(dir, pattern string) (*os.File, error)
}

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache enables writing successful catalog fetches to cache.
func WithCache(cache *CacheManager) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProgress renders download progress to w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) { c.progress = w }
}

// NewClient creates a client. Zero-valued config fields fall back to defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.CatalogURL == "" {
		cfg.CatalogURL = strings.TrimRight(cfg.BaseURL, "/") + "/api/mods"
	}
	if cfg.GitHubAPI == "" {
		cfg.GitHubAPI = def.GitHubAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = def.DownloadTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.GitHubAPI = strings.TrimRight(cfg.GitHubAPI, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		createTemp: os.CreateTemp,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrGlobal(c.logger)
	return c
}

// BaseURL returns the catalog base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// ResolveURL joins a catalog-relative path onto the base URL. Absolute http(s)
// and file URLs are returned unchanged.
func (c *Client) ResolveURL(p string) string {
	if isAbsoluteURL(p) {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.cfg.BaseURL + p
}

func isAbsoluteURL(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "file://")
}

// FetchMods downloads the catalog. A successful response is written to the
// cache when one is configured; failures never fall back to it.
func (c *Client) FetchMods(ctx context.Context) ([]models.Mod, error) {
	data, err := c.getBytes(ctx, c.cfg.CatalogURL, maxJSONResponseBytes)
	if err != nil {
		return nil, err
	}

	var mods []models.Mod
	if err := json.Unmarshal(data, &mods); err != nil {
		return nil, apperrors.NewNetworkError("catalog response is not valid JSON", err).
			WithContext("url", c.cfg.CatalogURL)
	}
	if mods == nil {
		mods = []models.Mod{}
	}

	if c.cache != nil {
		if err := c.cache.SetCatalog(mods); err != nil {
			c.logger.Warn("Failed to cache catalog: %v", err)
		}
	}

	c.logger.Debug("Fetched %d catalog entries", len(mods))
	return mods, nil
}

// FetchText returns the trimmed body of a small text resource such as a
// published version file.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	data, err := c.getBytes(ctx, url, 64*1024)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Download fetches url into a new temp file inside dir and returns its path.
// The caller removes the file. Partial files are removed on failure.
func (c *Client) Download(ctx context.Context, url, dir string) (string, error) {
	if strings.HasPrefix(strings.ToLower(url), "file://") {
		return c.copyLocalFile(url, dir)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	resp, err := c.do(ctx, url, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp, err := c.createTemp(dir, ".entwine-download-*.tmp")
	if err != nil {
		return "", apperrors.NewFileSystemError("failed to create download file", err).WithContext("dir", dir)
	}
	tmpPath := tmp.Name()

	pw := utils.NewProgressWriter(sinkWriter{tmp}, resp.ContentLength, c.progress)
	written, copyErr := io.Copy(pw, io.LimitReader(resp.Body, maxDownloadBytes+1))
	closeErr := tmp.Close()

	var sinkErr *writeError
	switch {
	case errors.As(copyErr, &sinkErr):
		os.Remove(tmpPath)
		return "", apperrors.NewFileSystemError("failed to write download", sinkErr.err).WithContext("dir", dir)
	case copyErr != nil:
		os.Remove(tmpPath)
		return "", apperrors.NewNetworkError("download interrupted", copyErr).WithContext("url", url)
	case closeErr != nil:
		os.Remove(tmpPath)
		return "", apperrors.NewFileSystemError("failed to write download", closeErr).WithContext("dir", dir)
	case written > maxDownloadBytes:
		os.Remove(tmpPath)
		return "", apperrors.NewNetworkError(fmt.Sprintf("download exceeds %d bytes", maxDownloadBytes), nil).WithContext("url", url)
	case resp.ContentLength > 0 && written != resp.ContentLength:
		os.Remove(tmpPath)
		return "", apperrors.NewNetworkError(fmt.Sprintf("size mismatch: expected %d bytes, got %d", resp.ContentLength, written), nil).
			WithContext("url", url)
	}

	pw.Finish()
	c.logger.Debug("Downloaded %s (%s)", url, utils.FormatBytes(written))
	return tmpPath, nil
}

// writeError marks a failure writing the local copy of a download.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// sinkWriter tags write failures so they are not mistaken for transfer errors.
type sinkWriter struct{ w io.Writer }

func (s sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, &writeError{err: err}
	}
	return n, nil
}

// copyLocalFile serves file:// sources, used for offline and side-loaded archives.
func (c *Client) copyLocalFile(fileURL, dir string) (string, error) {
	sourcePath := fileURL[len("file://"):]

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", apperrors.NewPathNotFoundError(sourcePath, "source file not accessible")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil || info.IsDir() {
		return "", apperrors.NewPathNotFoundError(sourcePath, "source is not a regular file")
	}

	tmp, err := c.createTemp(dir, ".entwine-download-*.tmp")
	if err != nil {
		return "", apperrors.NewFileSystemError("failed to create download file", err).WithContext("dir", dir)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		return "", apperrors.NewFileSystemError("failed to copy local file", cause).WithContext("source", sourcePath)
	}
	return tmpPath, nil
}

func (c *Client) getBytes(ctx context.Context, url string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read response", err).WithContext("url", url)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("response exceeds %d bytes", limit), nil).WithContext("url", url)
	}
	return data, nil
}

// do sends a GET and returns the response only for 200 OK.
func (c *Client) do(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, apperrors.NewNetworkError("invalid request URL", err).WithContext("url", url)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("request failed", err).WithContext("url", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewNetworkError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)), nil).
			WithContext("url", url)
	}
	return resp, nil
}
