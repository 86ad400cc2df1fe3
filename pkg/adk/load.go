package adk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"algoadk/go-runtime/pkg/manifest"
)

// session is what the load phase hands to the serve phase.
type session struct {
	state any
	// loadFailure is the encoded loading error, returned for every request
	// once set.
	loadFailure string
}

func (s *session) failed() bool {
	return s.loadFailure != ""
}

func (rt *Runtime) load(ctx context.Context) *session {
	correlationID := uuid.NewString()
	started := time.Now()
	state, err := rt.runLoad(ctx)
	elapsed := time.Since(started)
	rt.metrics.ObserveLoad(elapsed, err)

	if err != nil {
		return &session{loadFailure: rt.renderFailure(ctx, err, ErrorTypeLoading, "load", correlationID)}
	}
	rt.logInfo("load", correlationID, "load phase complete",
		zap.Stringer("mode", rt.mode),
		zap.Stringer("load_kind", rt.algo.loadKind),
		zap.Duration("elapsed", elapsed),
	)
	return &session{state: state}
}

func (rt *Runtime) runLoad(ctx context.Context) (state any, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, err = nil, newPanicError(r)
		}
	}()

	md, err := rt.openManifest(ctx)
	if err != nil {
		return nil, err
	}
	if rt.algo.loadKind == NoLoad {
		return nil, nil
	}
	return rt.algo.load(ctx, md)
}

// openManifest locates, verifies and initializes the manifest. With no
// manifest on disk it returns an unavailable handle.
func (rt *Runtime) openManifest(ctx context.Context) (*manifest.ModelData, error) {
	path := rt.manifestPath
	if path == "" {
		located, err := manifest.Locate(rt.manifestDir)
		if err != nil {
			return nil, err
		}
		path = located
	}
	md, err := manifest.Open(path, rt.fetcher,
		manifest.WithLogger(rt.logger),
		manifest.WithObserver(rt.observeResolution),
	)
	if err != nil {
		return nil, err
	}
	if !md.Available() {
		return md, nil
	}
	if err := md.Initialize(ctx); err != nil {
		return nil, err
	}
	rt.logInfo("load", "", "model manifest ready",
		zap.String("manifest_path", md.Path()),
		zap.Bool("frozen", manifest.IsFrozen(md.Path())),
	)
	return md, nil
}

func (rt *Runtime) observeResolution(kind, name string, err error) {
	rt.metrics.ObserveResolution(kind, err)
	if err == nil {
		rt.logger.Debug("model file resolved",
			zap.String("component", runtimeComponentName),
			zap.String("operation", "resolve"),
			zap.String("kind", kind),
			zap.String("name", name),
		)
	}
}
