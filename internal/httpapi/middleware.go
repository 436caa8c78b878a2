package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AlvinAlvito/posi-mobile/internal/util"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		reqID := util.NewRequestID()
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(sw, r)
		slog.Info("http request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

func Metrics(counter *prometheus.CounterVec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			counter.WithLabelValues(routeLabel(r), strconv.Itoa(sw.status)).Inc()
		})
	}
}

func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return tpl
}

// Identity is the authenticated caller, issued by the session layer.
type Identity struct {
	ID   int64
	Role string
}

// TokenVerifier validates a bearer token. The session layer itself lives in
// the main web application.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// StaticVerifier accepts a single shared admin token.
type StaticVerifier struct {
	Token   string
	AdminID int64
}

func (v StaticVerifier) Verify(token string) (Identity, error) {
	if v.Token == "" || token != v.Token {
		return Identity{}, errUnauthorized
	}
	return Identity{ID: v.AdminID, Role: "admin"}, nil
}

type identityKey struct{}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// RequireRole guards a handler behind bearer auth plus a role check.
func RequireRole(v TokenVerifier, role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		id, err := v.Verify(token)
		if err != nil {
			http.Error(w, ErrUnauthorized, http.StatusUnauthorized)
			return
		}
		if role != "" && id.Role != role {
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}
