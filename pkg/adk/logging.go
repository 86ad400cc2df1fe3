package adk

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

const runtimeComponentName = "adk"

func (rt *Runtime) baseFields(operation, correlationID string) []zap.Field {
	return []zap.Field{
		zap.String("component", runtimeComponentName),
		zap.String("operation", strings.TrimSpace(operation)),
		zap.String("correlation_id", strings.TrimSpace(correlationID)),
	}
}

func (rt *Runtime) logInfo(operation, correlationID, message string, fields ...zap.Field) {
	rt.logger.Info(message, append(rt.baseFields(operation, correlationID), fields...)...)
}

func (rt *Runtime) logWarn(operation, correlationID, message string, fields ...zap.Field) {
	rt.logger.Warn(message, append(rt.baseFields(operation, correlationID), fields...)...)
}

// recordErrorWithContext logs a failure. Repeats of one error type are
// throttled; the next logged entry carries the number dropped.
func (rt *Runtime) recordErrorWithContext(errorType string, err error, operation, correlationID string, fields ...zap.Field) {
	if err == nil {
		return
	}
	allowed, suppressed := rt.errorLogs.AllowWithSuppressed(errorType, time.Now())
	if !allowed {
		return
	}
	base := append(rt.baseFields(operation, correlationID),
		zap.String("error_type", errorType),
		zap.Error(err),
	)
	if suppressed > 0 {
		base = append(base, zap.Uint64("suppressed", suppressed))
	}
	rt.logger.Error("operation failed", append(base, fields...)...)
}
