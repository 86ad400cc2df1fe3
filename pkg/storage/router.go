package storage

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"algoadk/go-runtime/internal/config"
)

// Router dispatches on the URI scheme. URIs without a scheme go to the
// "file" fetcher.
type Router struct {
	byScheme map[string]Fetcher
}

func NewRouter() *Router {
	return &Router{byScheme: make(map[string]Fetcher)}
}

func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.byScheme[strings.ToLower(scheme)] = f
	return r
}

func (r *Router) Fetch(ctx context.Context, uri string) (string, error) {
	scheme := "file"
	if i := strings.Index(uri, "://"); i > 0 {
		scheme = strings.ToLower(uri[:i])
	}
	f, ok := r.byScheme[scheme]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedScheme, "%q in %s", scheme, uri)
	}
	return f.Fetch(ctx, uri)
}

// NewDefaultRouter wires the file, data and http(s) fetchers from cfg.
func NewDefaultRouter(cfg config.StorageConfig) *Router {
	web := NewHTTPFetcher(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.CacheDir)
	return NewRouter().
		Handle("file", FileFetcher{}).
		Handle("data", DataFetcher{Root: cfg.DataRoot}).
		Handle("http", web).
		Handle("https", web)
}
