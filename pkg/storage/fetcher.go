// Package storage resolves manifest source URIs to local file paths.
package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Fetcher makes the file behind uri available locally and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (string, error)
}

type FetcherFunc func(ctx context.Context, uri string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, uri string) (string, error) {
	return f(ctx, uri)
}

var ErrUnsupportedScheme = errors.New("unsupported source uri scheme")

// FileFetcher serves file:// URIs and bare local paths in place.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := uri
	if strings.HasPrefix(uri, "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", errors.Wrapf(err, "parse %s", uri)
		}
		path = u.Path
	}
	return checkRegularFile(path)
}

// DataFetcher maps data://collection/path onto a directory tree under Root.
type DataFetcher struct {
	Root string
}

func (f DataFetcher) Fetch(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(f.Root) == "" {
		return "", errors.Newf("data root is not configured for %s", uri)
	}
	rel, ok := strings.CutPrefix(uri, "data://")
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedScheme, "%s", uri)
	}
	rel = filepath.Clean("/" + rel)
	if rel == "/" {
		return "", errors.Newf("data uri %s names no file", uri)
	}
	return checkRegularFile(filepath.Join(f.Root, rel))
}

func checkRegularFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return "", errors.Newf("%s is a directory", path)
	}
	return path, nil
}
