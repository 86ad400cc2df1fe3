package adk

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"algoadk/go-runtime/internal/config"
	"algoadk/go-runtime/internal/platform/logging"
	"algoadk/go-runtime/internal/platform/metrics"
	"algoadk/go-runtime/internal/platform/ratelimiter"
	"algoadk/go-runtime/pkg/models"
	"algoadk/go-runtime/pkg/storage"
)

// loadConfig is swapped in tests.
var loadConfig = config.Load

type Mode int

const (
	ModeLocal Mode = iota
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "local"
}

// Runtime is built once and then driven by Init: load, then serve.
type Runtime struct {
	algo         algorithm
	fetcher      storage.Fetcher
	manifestDir  string
	manifestPath string
	hook         ExceptionHook
	pipePath     string
	mode         Mode
	stdin        io.Reader
	stdout       io.Writer
	logger       *zap.Logger
	metrics      *metrics.Recorder
	errorLogs    *ratelimiter.MapLimiter
	started      atomic.Bool
}

// New validates the algorithm and fixes the transport mode. Every failure
// is a *ConfigurationError.
func New(apply any, opts ...Option) (*Runtime, error) {
	var s settings
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	applyKind, applyFn, err := bindApply(apply)
	if err != nil {
		return nil, err
	}
	loadKind, loadFn, err := bindLoad(s.load)
	if err != nil {
		return nil, err
	}

	var cfg config.Config
	if s.cfg != nil {
		cfg = *s.cfg
	} else {
		cfg = loadConfig("")
	}

	rt := &Runtime{
		algo: algorithm{
			applyKind: applyKind,
			apply:     applyFn,
			loadKind:  loadKind,
			load:      loadFn,
		},
		fetcher:      s.fetcher,
		manifestDir:  s.manifestDir,
		manifestPath: s.manifestPath,
		hook:         s.hook,
		pipePath:     s.pipePath,
		stdin:        s.stdin,
		stdout:       s.stdout,
		logger:       s.logger,
		metrics:      s.metrics,
		errorLogs:    ratelimiter.New(1, 5, time.Minute),
	}
	if !s.fetcherSet {
		rt.fetcher = storage.NewDefaultRouter(cfg.Storage)
	}
	if rt.manifestDir == "" {
		rt.manifestDir = cfg.Manifest.Dir
	}
	if rt.pipePath == "" {
		rt.pipePath = models.DefaultPipePath
	}
	if rt.stdin == nil {
		rt.stdin = os.Stdin
	}
	if rt.stdout == nil {
		rt.stdout = os.Stdout
	}
	if rt.logger == nil {
		rt.logger = logging.MustNew(cfg.Logging)
	}
	if rt.metrics == nil {
		rt.metrics = metrics.New(cfg.Metrics.Textfile)
	}

	mode, err := detectMode(rt.pipePath)
	if err != nil {
		return nil, err
	}
	rt.mode = mode
	return rt, nil
}

func detectMode(pipePath string) (Mode, error) {
	_, err := os.Stat(pipePath)
	switch {
	case err == nil:
		return ModeServer, nil
	case errors.Is(err, os.ErrNotExist):
		return ModeLocal, nil
	default:
		return ModeLocal, configErrorf("probe pipe path %s: %v", pipePath, err)
	}
}

func (rt *Runtime) Mode() Mode           { return rt.mode }
func (rt *Runtime) ApplyKind() ApplyKind { return rt.algo.applyKind }
func (rt *Runtime) LoadKind() LoadKind   { return rt.algo.loadKind }

func (rt *Runtime) flushMetrics() {
	if err := rt.metrics.Flush(); err != nil {
		rt.logWarn("metrics", "", "metrics flush failed", zap.Error(err))
	}
}
