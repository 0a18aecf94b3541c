package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/custodia-labs/patron-bridge/internal/core/ports/driven"
)

// Context keys
type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID tags every request with a ksuid, echoes it in the
// X-Request-ID header, and logs the request outcome.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = ksuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("request",
				"id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// GetRequestID retrieves the request ID from the request context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CORS answers pre-flight OPTIONS with a success status and disables
// caching on every flow endpoint. The bridge is called from a desktop
// plugin's embedded browser, so the origin is unconstrained.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Cache-Control", "no-store")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MaintenanceMiddleware guards maintenance endpoints with a signed bearer
// token carrying the required scope.
type MaintenanceMiddleware struct {
	authAdapter driven.AuthAdapter
	scope       string
}

// NewMaintenanceMiddleware creates a new MaintenanceMiddleware.
func NewMaintenanceMiddleware(authAdapter driven.AuthAdapter, scope string) *MaintenanceMiddleware {
	return &MaintenanceMiddleware{authAdapter: authAdapter, scope: scope}
}

// Require validates the bearer token and its scope.
func (m *MaintenanceMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		scope, err := m.authAdapter.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if scope != m.scope {
			writeError(w, http.StatusForbidden, "maintenance scope required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
