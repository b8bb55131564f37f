// pkg/telemetry/telemetry.go
package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracer is a no-op until Init runs, so library code and tests can open
// spans without any setup.
var tracer trace.Tracer = noop.NewTracerProvider().Tracer("honeydash")

var shutdown = func(context.Context) error { return nil }

// Init configures OpenTelemetry; call this early in main().
func Init(service string) error {
	if !IsEnabled() {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(service)
		return nil
	}

	telemetryDir := "/var/log/honeydash"
	if err := os.MkdirAll(telemetryDir, 0755); err != nil {
		telemetryDir = filepath.Join(os.Getenv("HOME"), ".honeydash", "telemetry")
		if err := os.MkdirAll(telemetryDir, 0755); err != nil {
			return cerr.Wrap(err, "failed to create telemetry directory")
		}
	}

	telemetryFile := filepath.Join(telemetryDir, "telemetry.jsonl")
	file, err := os.OpenFile(telemetryFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return cerr.Wrap(err, "failed to open telemetry file")
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		file.Close()
		return cerr.Wrap(err, "failed to create file exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(
			sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				attribute.String("service.name", service),
				attribute.String("host.name", hostname()),
				attribute.String("honeydash.install_id", AnonTelemetryID()),
			),
		),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(service)
	shutdown = func(ctx context.Context) error {
		defer file.Close()
		return tp.Shutdown(ctx)
	}
	return nil
}

// Shutdown flushes pending spans. Safe to call when telemetry is disabled.
func Shutdown(ctx context.Context) error {
	return shutdown(ctx)
}

// Start a telemetry span with optional attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// TruncateArgs joins a command line for a span attribute, capped at 256 bytes.
func TruncateArgs(args []string) string {
	full := strings.Join(args, " ")
	if len(full) > 256 {
		return full[:256] + "..."
	}
	return full
}

// CommandCategory groups commands and API routes for span attributes.
// Commands arrive as their cobra path ("honeydash create redirect"), routes
// as "api.redirect.create".
func CommandCategory(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimPrefix(cmd, "honeydash "), "api.")
	switch {
	case strings.HasPrefix(cmd, "redirect"):
		return "diversion"
	case strings.HasPrefix(cmd, "decoy"):
		return "lifecycle"
	case strings.HasPrefix(cmd, "capture"):
		return "capture"
	case strings.HasPrefix(cmd, "create"), strings.HasPrefix(cmd, "delete"):
		return "diversion"
	case strings.HasPrefix(cmd, "start"), strings.HasPrefix(cmd, "stop"):
		return "lifecycle"
	case strings.HasPrefix(cmd, "read"), strings.HasPrefix(cmd, "sync"):
		return "capture"
	default:
		return "general"
	}
}

// IsEnabled reports whether spans are exported: HONEYDASH_TELEMETRY=1, or a
// ~/.honeydash/telemetry_on marker file.
func IsEnabled() bool {
	if v := os.Getenv("HONEYDASH_TELEMETRY"); v != "" {
		return v == "1" || strings.EqualFold(v, "true")
	}
	path := filepath.Join(os.Getenv("HOME"), ".honeydash", "telemetry_on")
	_, err := os.Stat(path)
	return err == nil
}

func AnonTelemetryID() string {
	path := filepath.Join(os.Getenv("HOME"), ".honeydash", "telemetry_id")

	if data, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(data))
	}

	id := "anon-" + uuid.New().String()
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	_ = os.WriteFile(path, []byte(id), 0600)

	return id
}
