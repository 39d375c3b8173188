// ABOUTME: Audio byte fetcher for URLs and local files
// ABOUTME: Downloads over HTTP with an optional on-disk cache keyed by URL hash
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	neturl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrStatus is wrapped by errors for non-200 responses
var ErrStatus = errors.New("unexpected HTTP status")

// Options configures a Fetcher
type Options struct {
	// CacheDir stores downloaded payloads; empty disables caching
	CacheDir string

	// Timeout bounds each HTTP request (default: none)
	Timeout time.Duration

	// Client overrides the HTTP client
	Client *http.Client
}

// Fetcher loads audio payloads from http(s) URLs, file:// URLs and paths
type Fetcher struct {
	cacheDir string
	client   *http.Client
}

// New creates a fetcher, creating the cache directory when one is set
func New(opts Options) (*Fetcher, error) {
	if opts.CacheDir != "" {
		if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Fetcher{cacheDir: opts.CacheDir, client: client}, nil
}

// Fetch returns the complete payload at url
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("empty URL")
	}

	if !isHTTP(url) {
		name := strings.TrimPrefix(url, "file://")
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}

	cachePath := f.cachePath(url)
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			log.Printf("Audio cache hit: %s", cachePath)
			return data, nil
		}
	}

	log.Printf("Downloading audio: %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if cachePath != "" {
		if err := writeCache(cachePath, data); err != nil {
			log.Printf("Failed to cache audio: %v", err)
		}
	}
	return data, nil
}

// cachePath returns where url is cached, or "" when caching is off
func (f *Fetcher) cachePath(url string) string {
	if f.cacheDir == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], getExtension(url)))
}

// writeCache writes through a temp file so readers never see partial data
func writeCache(name string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// getExtension extracts the file extension from a URL path
func getExtension(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return ".bin"
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		ext = ".bin"
	}
	return ext
}

// Cleanup removes the cache directory
func (f *Fetcher) Cleanup() error {
	if f.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(f.cacheDir)
}
