package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// requestLogger tags lines with the request id, the matched route and, once
// authenticated, the caller.
func requestLogger(r *http.Request) *slog.Logger {
	fields := []any{
		"module", "http",
		"layer", "adapter",
		"request_id", requestIDFromContext(r.Context()),
		"method", r.Method,
		"route", routePattern(r),
	}
	if claims, ok := claimsFromContext(r.Context()); ok {
		fields = append(fields, "subject_id", claims.SubjectID)
	}
	return slog.Default().With(fields...)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func logOperationError(r *http.Request, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	logger := requestLogger(r)
	switch {
	case statusCode >= 500:
		logger.ErrorContext(r.Context(), "http operation failed", fields...)
	case code == "CONCURRENCY_CONFLICT":
		// lost a race twice; the caller is told to retry
		logger.InfoContext(r.Context(), "http operation failed", fields...)
	default:
		logger.WarnContext(r.Context(), "http operation failed", fields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		level := slog.LevelInfo
		outcome := "success"
		switch {
		case recorder.statusCode >= 500:
			level, outcome = slog.LevelError, "failure"
		case recorder.statusCode >= 400:
			level, outcome = slog.LevelWarn, "failure"
		}
		requestLogger(r).Log(r.Context(), level, "http request completed",
			"operation", "http_request",
			"outcome", outcome,
			"status_code", recorder.statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
