package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/bemserver/internal/models"
)

type accessLogger interface {
	Info(msg string, args ...any)
}

type logData struct {
	responseStatus int
	responseSize   int
	wroteHeader    bool
}

type logWriter struct {
	http.ResponseWriter
	data logData
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.data.wroteHeader = true
	size, err := w.ResponseWriter.Write(p)
	w.data.responseSize += size
	return size, err
}

func (w *logWriter) WriteHeader(statusCode int) {
	if w.data.wroteHeader {
		return
	}
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.responseStatus = statusCode
	w.data.wroteHeader = true
}

// Authentication outcome of the request, filled by Gate
type accessEntry struct {
	scheme string
	result string
	userID string
}

type accessEntryKey struct{}

// Remember gate outcome for access log, if request is logged
func recordAuth(ctx context.Context, scheme string, result string, user models.User) {
	entry, ok := ctx.Value(accessEntryKey{}).(*accessEntry)
	if !ok {
		return
	}

	entry.scheme = scheme
	entry.result = result
	if result == resultOK {
		entry.userID = user.ID.String()
	}
}

// Log every request after it served
// Requests passed through Gate are logged with auth scheme, result and user
func LoggerMiddleware(l accessLogger, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	if clientIP == nil {
		clientIP = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK, responseSize: 0},
			}
			entry := &accessEntry{}

			next.ServeHTTP(lw, r.WithContext(context.WithValue(r.Context(), accessEntryKey{}, entry)))

			l.Info(
				"got HTTP request",
				"method", r.Method,
				"uri", r.RequestURI,
				"ip", clientIP(r),
				"auth_scheme", entry.scheme,
				"auth", entry.result,
				"user", entry.userID,
				"duration", time.Since(start),
				"status", lw.data.responseStatus,
				"size", lw.data.responseSize,
			)
		})
	}
}
