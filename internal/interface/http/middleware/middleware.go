package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"user-api/internal/application/dto"
)

// RequestIDHeader carries the request correlation id
const RequestIDHeader = "X-Request-ID"

// maxLoggedBody caps how much of a body is copied into a log line
const maxLoggedBody = 4 << 10

// Middleware represents a middleware function
type Middleware func(http.Handler) http.Handler

type requestIDKey struct{}

// RequestIDFromContext returns the request id stored by RequestIDMiddleware
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// responseRecorder captures response status and, optionally, the body
type responseRecorder struct {
	http.ResponseWriter
	status      int
	captureBody bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.captureBody && r.body.Len() < maxLoggedBody {
		r.body.Write(b[:min(len(b), maxLoggedBody-r.body.Len())])
	}
	return r.ResponseWriter.Write(b)
}

// RequestIDMiddleware reuses an incoming X-Request-ID or generates one, echoes
// it on the response and stores it in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.request_id", id))

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs incoming requests and responses without bodies
func LoggingMiddleware(next http.Handler) http.Handler {
	return LoggingMiddlewareWithConfig(false)(next)
}

// LoggingMiddlewareWithConfig logs incoming requests and responses. Bodies
// are included, truncated, only when logBodies is set.
func LoggingMiddlewareWithConfig(logBodies bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"request_id", RequestIDFromContext(ctx),
			}

			if logBodies && r.Body != nil {
				reqBody, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				r.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(reqBody), r.Body), r.Body}
				attrs = append(attrs, "body", string(reqBody))
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK, captureBody: logBodies}

			slog.InfoContext(ctx, "Incoming request", attrs...)

			next.ServeHTTP(rec, r)

			done := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(ctx),
				"duration", time.Since(start),
				"status", rec.status,
			}
			if logBodies {
				done = append(done, "response_body", rec.body.String())
			}
			slog.InfoContext(ctx, "Request completed", done...)
		})
	}
}

// OtelHttpMiddleware adds OpenTelemetry tracing and metrics to requests.
// otelhttp records the HTTP server metrics and creates the server span.
func OtelHttpMiddleware(operation string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			operation,
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
	}
}

// RecoveryMiddleware recovers from panics, logs them and answers a JSON 500
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := r.Context()
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}

			slog.ErrorContext(ctx, "Panic recovered",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(ctx),
			)

			span := trace.SpanFromContext(ctx)
			if span.IsRecording() {
				span.SetStatus(codes.Error, "panic")
				span.RecordError(err, trace.WithAttributes(
					attribute.String("panic", "recovered"),
				))
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
				Error:   http.StatusText(http.StatusInternalServerError),
				Code:    "INTERNAL_ERROR",
				Message: "An internal error occurred",
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-Match, "+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", "ETag, Location, "+RequestIDHeader)

		// Preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ChainMiddleware chains multiple middleware functions. The first one listed
// is the outermost.
func ChainMiddleware(mw ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			final = mw[i](final)
		}
		return final
	}
}
