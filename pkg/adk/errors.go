package adk

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"algoadk/go-runtime/internal/codec"
	"algoadk/go-runtime/pkg/models"
)

const (
	ErrorTypeLoading   = "LoadingError"
	ErrorTypeAlgorithm = "AlgorithmError"
)

// ErrUnserializedPayload is returned when something other than an encoded
// response line reaches an output writer.
var ErrUnserializedPayload = errors.New("response writer accepts serialized text only")

// ErrAlreadyStarted is returned by a second call to Init.
var ErrAlreadyStarted = errors.New("adk runtime already started; Init runs once")

// ConfigurationError means the runtime could not be built. Nothing runs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "adk configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrorTyper lets an error choose the error_type reported on the wire.
type ErrorTyper interface {
	ErrorType() string
}

type typedError struct {
	errorType string
	cause     error
}

func (e *typedError) Error() string     { return e.cause.Error() }
func (e *typedError) Unwrap() error     { return e.cause }
func (e *typedError) ErrorType() string { return e.errorType }

// NewError returns an error reported with the given error_type.
func NewError(errorType, message string) error {
	return &typedError{errorType: errorType, cause: errors.NewWithDepth(1, message)}
}

// WithErrorType tags err with errorType, keeping its message and chain.
func WithErrorType(err error, errorType string) error {
	if err == nil {
		return nil
	}
	return &typedError{errorType: errorType, cause: err}
}

// PanicError carries a recovered panic and the stack at recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ExceptionHook is told about every failure before its envelope is built.
type ExceptionHook func(ctx context.Context, err error) error

func errorTypeOf(err error, fallback string) string {
	var typer ErrorTyper
	if errors.As(err, &typer) {
		if t := strings.TrimSpace(typer.ErrorType()); t != "" {
			return t
		}
	}
	return fallback
}

func stacktraceOf(err error) string {
	var perr *PanicError
	if errors.As(err, &perr) {
		return string(perr.Stack)
	}
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if errors.GetReportableStackTrace(e) != nil {
			return fmt.Sprintf("%+v", errors.Formattable(err))
		}
	}
	return ""
}

func errorBody(err error, fallback string) models.ErrorBody {
	return models.ErrorBody{
		Message:    err.Error(),
		Stacktrace: stacktraceOf(err),
		ErrorType:  errorTypeOf(err, fallback),
	}
}

// renderFailure runs the hook, logs and encodes the envelope for err.
func (rt *Runtime) renderFailure(ctx context.Context, err error, fallback, operation, correlationID string) string {
	rt.runHook(ctx, err, operation, correlationID)
	body := errorBody(err, fallback)
	rt.recordErrorWithContext(body.ErrorType, err, operation, correlationID)
	line, mErr := codec.MarshalError(models.ErrorResponse{Error: body})
	if mErr != nil {
		line = fmt.Sprintf(`{"error":{"message":%q,"stacktrace":"","error_type":%q}}`, "failed to encode error", body.ErrorType)
	}
	return line
}

func (rt *Runtime) runHook(ctx context.Context, err error, operation, correlationID string) {
	if rt.hook == nil {
		return
	}
	hookErr := func() (hookErr error) {
		defer func() {
			if r := recover(); r != nil {
				hookErr = newPanicError(r)
			}
		}()
		return rt.hook(ctx, err)
	}()
	if hookErr != nil {
		rt.logWarn(operation, correlationID, "exception hook failed",
			zap.Error(errors.Wrap(hookErr, "exception hook failed")),
			zap.String("original_error", err.Error()),
		)
	}
}
