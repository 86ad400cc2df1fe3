package storage

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/cockroachdb/errors"
)

// HTTPFetcher downloads http(s) URIs into a private directory it creates
// under CacheDir. Each URI is downloaded at most once per fetcher; nothing
// found on disk from other processes is ever reused.
type HTTPFetcher struct {
	Client   *http.Client
	CacheDir string

	mu         sync.Mutex
	privateDir string
	downloaded map[string]string
}

func NewHTTPFetcher(client *http.Client, cacheDir string) *HTTPFetcher {
	return &HTTPFetcher{Client: client, CacheDir: cacheDir}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if local, ok := f.downloaded[uri]; ok {
		return local, nil
	}
	dir, err := f.ensurePrivateDir()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", errors.Wrapf(err, "build request for %s", uri)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "download %s", uri)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf("download %s: unexpected status %d", uri, resp.StatusCode)
	}

	out, err := os.CreateTemp(dir, "model-*"+path.Ext(req.URL.Path))
	if err != nil {
		return "", errors.Wrap(err, "create download file")
	}
	local := out.Name()
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(local)
		return "", errors.Wrapf(err, "download %s", uri)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(local)
		return "", err
	}
	if f.downloaded == nil {
		f.downloaded = make(map[string]string)
	}
	f.downloaded[uri] = local
	return local, nil
}

// ensurePrivateDir creates the 0700 download directory on first use.
func (f *HTTPFetcher) ensurePrivateDir() (string, error) {
	if f.privateDir != "" {
		return f.privateDir, nil
	}
	base := f.CacheDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return "", errors.Wrap(err, "create cache dir")
	}
	dir, err := os.MkdirTemp(base, "adk-downloads-")
	if err != nil {
		return "", errors.Wrap(err, "create download dir")
	}
	f.privateDir = dir
	return dir, nil
}

// Cleanup removes every file this fetcher downloaded.
func (f *HTTPFetcher) Cleanup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.privateDir == "" {
		return nil
	}
	err := os.RemoveAll(f.privateDir)
	f.privateDir = ""
	f.downloaded = nil
	return err
}
