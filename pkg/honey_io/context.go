// pkg/honey_io/context.go

package honey_io

import (
	"context"
	"os"
	"os/user"
	"runtime"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RuntimeContext carries the context, logger and span of one CLI command or
// API request. Attributes are copied onto the span when it ends.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Component  string
	TraceID    string
	Attributes map[string]string
}

// NewContext sets up tracing and a scoped logger for one command run.
func NewContext(parent context.Context, cmdName string) *RuntimeContext {
	if parent == nil {
		parent = context.Background()
	}
	ctx, span := telemetry.Start(parent, cmdName)
	traceID := logger.GenerateTraceID()

	comp := callerPackage(3)
	log := zap.L().With(
		zap.String("command", cmdName),
		zap.String("trace_id", traceID),
	).Named(comp)

	return &RuntimeContext{
		Ctx:        ctx,
		Span:       span,
		Log:        log,
		Timestamp:  time.Now(),
		Component:  comp,
		Command:    cmdName,
		TraceID:    traceID,
		Attributes: make(map[string]string),
	}
}

// NewTestContext returns a RuntimeContext over ctx that logs through log.
func NewTestContext(ctx context.Context, log *zap.Logger) *RuntimeContext {
	ctx, span := telemetry.Start(ctx, "test")
	return &RuntimeContext{
		Ctx:        ctx,
		Span:       span,
		Log:        log,
		Timestamp:  time.Now(),
		Component:  "test",
		Command:    "test",
		Attributes: make(map[string]string),
	}
}

// HandlePanic recovers panics, logs them, and converts to an error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Log.Error("panic recovered", zap.Any("panic", r))
	}
}

// End logs outcome, records span attributes, and flushes.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	duration := time.Since(rc.Timestamp)
	var err error
	if errPtr != nil {
		err = *errPtr
	}

	switch {
	case err == nil:
		rc.Log.Debug("Command completed", zap.Duration("duration", duration))
	case honey_err.IsExpectedUserError(err):
		rc.Log.Info("Command finished with notice", zap.Duration("duration", duration), zap.Error(err))
	default:
		rc.Log.Error("Command failed", zap.Duration("duration", duration), zap.Error(err))
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("category", telemetry.CommandCategory(rc.Command)),
		attribute.String("error_type", classifyError(err)),
	}
	for k, v := range rc.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	rc.Span.SetAttributes(attrs...)
	if err != nil {
		rc.Span.RecordError(err)
	}

	logger.Sync()
}

// LogRuntimeExecutionContext records who is running the command.
func LogRuntimeExecutionContext(rc *RuntimeContext) {
	u, err := user.Current()
	if err != nil {
		rc.Log.Warn("Failed to get current user", zap.Error(err))
		return
	}
	rc.Log.Debug("User context",
		zap.String("username", u.Username),
		zap.Int("effective_uid", os.Geteuid()),
		zap.String("sudo_user", os.Getenv("SUDO_USER")),
	)
}

// callerPackage names the directory of the caller skip frames up: the
// cmd/<verb> package for commands, "api" for requests.
func callerPackage(skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if honey_err.IsExpectedUserError(err) {
		return "user"
	}
	if c, ok := honey_err.CategoryOf(err); ok {
		return c.String()
	}
	return "system"
}
