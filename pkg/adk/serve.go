package adk

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"algoadk/go-runtime/internal/codec"
	"algoadk/go-runtime/internal/platform/metrics"
	"algoadk/go-runtime/pkg/models"
)

// Init runs the load phase once, announces readiness and serves.
//
// In local mode a non-nil localPayload is applied once and the response is
// handed to sink (stdout when sink is nil); with a nil payload requests are
// read from stdin like in server mode. In server mode sink is unused and
// every response line is appended to the pipe. Init returns when input is
// exhausted, ctx is done, or the transport fails. A Runtime serves once:
// later calls return ErrAlreadyStarted without running load again.
func (rt *Runtime) Init(ctx context.Context, localPayload any, sink func(string)) error {
	if !rt.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s := rt.load(ctx)
	if err := rt.announceReady(); err != nil {
		return err
	}
	rt.flushMetrics()

	if rt.mode == ModeServer {
		return rt.serveLines(ctx, s, pipeEmitter(rt.pipePath))
	}
	emit := localEmitter(rt.stdout, sink)
	if localPayload == nil {
		return rt.serveLines(ctx, s, emit)
	}
	out := rt.handlePayload(ctx, s, localPayload, uuid.NewString())
	rt.flushMetrics()
	return emit(out)
}

func (rt *Runtime) announceReady() error {
	sentinel := models.LoadingComplete
	if rt.mode == ModeServer {
		sentinel = models.PipeInitComplete
	}
	if _, err := fmt.Fprintln(rt.stdout, sentinel); err != nil {
		return errors.Wrap(err, "write readiness line")
	}
	return nil
}

func (rt *Runtime) serveLines(ctx context.Context, s *session, emit emitter) error {
	r := bufio.NewReader(rt.stdin)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err := emit(rt.handleLine(ctx, s, trimmed)); err != nil {
				return errors.Wrap(err, "emit response")
			}
			rt.flushMetrics()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return errors.Wrap(readErr, "read request")
		}
	}
}

func (rt *Runtime) handleLine(ctx context.Context, s *session, line []byte) string {
	correlationID := uuid.NewString()
	if s.failed() {
		rt.metrics.ObserveRequest(metrics.OutcomeLoadingError, "", 0)
		return s.loadFailure
	}
	req, err := codec.ParseRequestLine(line)
	if err == nil {
		var payload any
		payload, err = codec.PayloadFromRequest(req)
		if err == nil {
			return rt.handlePayload(ctx, s, payload, correlationID)
		}
	}
	rt.metrics.ObserveRequest(metrics.OutcomeError, "", 0)
	return rt.renderFailure(ctx, err, ErrorTypeAlgorithm, "apply", correlationID)
}

func (rt *Runtime) handlePayload(ctx context.Context, s *session, payload any, correlationID string) string {
	if s.failed() {
		rt.metrics.ObserveRequest(metrics.OutcomeLoadingError, "", 0)
		return s.loadFailure
	}
	started := time.Now()
	result, err := rt.invoke(ctx, s, payload)
	elapsed := time.Since(started)
	if err != nil {
		rt.metrics.ObserveRequest(metrics.OutcomeError, "", elapsed)
		return rt.renderFailure(ctx, err, ErrorTypeAlgorithm, "apply", correlationID)
	}
	line, err := encodeResult(result)
	if err != nil {
		rt.metrics.ObserveRequest(metrics.OutcomeError, "", elapsed)
		return rt.renderFailure(ctx, err, ErrorTypeAlgorithm, "apply", correlationID)
	}
	rt.metrics.ObserveRequest(metrics.OutcomeSuccess, string(codec.Classify(result)), elapsed)
	return line
}

// encodeResult also guards against MarshalJSON implementations that panic.
func encodeResult(result any) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			line, err = "", newPanicError(r)
		}
	}()
	return codec.MarshalResponse(result)
}

func (rt *Runtime) invoke(ctx context.Context, s *session, payload any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, newPanicError(r)
		}
	}()
	return rt.algo.apply(ctx, payload, s.state)
}
