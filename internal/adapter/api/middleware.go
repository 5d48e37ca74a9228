package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyRole
)

const roleAdmin = "admin"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundflow_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundflow_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// AuthMiddleware validates the shared bearer token and extracts the
// authenticated caller identity asserted by the gateway. The engine
// trusts this identity at the transport level but independently
// re-checks ownership and eligibility in the usecases.
func AuthMiddleware(validToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token != validToken {
				respondWithError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}

			ctx := r.Context()
			if rawID := r.Header.Get("X-User-ID"); rawID != "" {
				userID, err := uuid.Parse(rawID)
				if err != nil {
					respondWithError(w, http.StatusUnauthorized, "malformed user id")
					return
				}
				ctx = context.WithValue(ctx, ctxKeyUserID, userID)
			}
			if role := r.Header.Get("X-User-Role"); role != "" {
				ctx = context.WithValue(ctx, ctxKeyRole, role)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerID returns the authenticated caller, if any
func callerID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(ctxKeyUserID).(uuid.UUID)
	return id, ok
}

// isAdmin reports whether the gateway asserted the admin role
func isAdmin(r *http.Request) bool {
	role, _ := r.Context().Value(ctxKeyRole).(string)
	return role == roleAdmin
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request counts and latencies per route
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
