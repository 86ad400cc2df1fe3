package adk

import (
	"io"
	"strings"

	"go.uber.org/zap"

	"algoadk/go-runtime/internal/config"
	"algoadk/go-runtime/internal/platform/metrics"
	"algoadk/go-runtime/pkg/storage"
)

type Option func(*settings) error

type settings struct {
	load         any
	fetcher      storage.Fetcher
	fetcherSet   bool
	manifestDir  string
	manifestPath string
	hook         ExceptionHook
	pipePath     string
	stdin        io.Reader
	stdout       io.Writer
	logger       *zap.Logger
	metrics      *metrics.Recorder
	cfg          *config.Config
}

// WithLoad sets the load function. See bindLoad for the accepted shapes.
func WithLoad(fn any) Option {
	return func(s *settings) error {
		s.load = fn
		return nil
	}
}

// WithStorage sets the fetcher used for manifest files. Passing nil
// disables fetching; a manifest with files then fails to load.
func WithStorage(f storage.Fetcher) Option {
	return func(s *settings) error {
		s.fetcher = f
		s.fetcherSet = true
		return nil
	}
}

func WithManifestDir(dir string) Option {
	return func(s *settings) error {
		if strings.TrimSpace(dir) == "" {
			return configErrorf("manifest dir must not be empty")
		}
		s.manifestDir = dir
		return nil
	}
}

// WithManifestPath pins the manifest file, skipping the directory lookup.
// A path ending in .freeze is treated as frozen.
func WithManifestPath(path string) Option {
	return func(s *settings) error {
		if strings.TrimSpace(path) == "" {
			return configErrorf("manifest path must not be empty")
		}
		s.manifestPath = path
		return nil
	}
}

func WithExceptionHook(hook ExceptionHook) Option {
	return func(s *settings) error {
		s.hook = hook
		return nil
	}
}

func WithPipePath(path string) Option {
	return func(s *settings) error {
		if strings.TrimSpace(path) == "" {
			return configErrorf("pipe path must not be empty")
		}
		s.pipePath = path
		return nil
	}
}

func WithStdin(r io.Reader) Option {
	return func(s *settings) error {
		if r == nil {
			return configErrorf("stdin reader must not be nil")
		}
		s.stdin = r
		return nil
	}
}

func WithStdout(w io.Writer) Option {
	return func(s *settings) error {
		if w == nil {
			return configErrorf("stdout writer must not be nil")
		}
		s.stdout = w
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			return configErrorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *settings) error {
		s.metrics = r
		return nil
	}
}

// WithConfig replaces the config that New would otherwise load from disk
// and the environment.
func WithConfig(cfg config.Config) Option {
	return func(s *settings) error {
		s.cfg = &cfg
		return nil
	}
}
