package gateway

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// statusRecorder captures the response status for the request log. It
// forwards Flush so the SSE handler keeps working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// withRequestLog tags every request with an X-Request-ID and logs it on completion.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		slog.Info("gateway: request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", clientIP(r),
			"user_agent", r.UserAgent(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// withRecover turns a handler panic into a 500. The panic value is only
// exposed in development.
func (gw *Gateway) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			slog.Error("gateway: handler panic", "method", r.Method, "path", r.URL.Path, "panic", rv)
			detail := "请稍后重试"
			if gw.cfg.IsDevelopment() {
				detail = fmt.Sprint(rv)
			}
			writeErrorMessage(w, http.StatusInternalServerError, "服务器内部错误", detail)
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the route's fixed-window budget per client IP.
func (gw *Gateway) withRateLimit(route webhookRoute, next http.HandlerFunc) http.HandlerFunc {
	limiter := gw.limiters[route.name]
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, wait := limiter.Allow(ip)
		if ok {
			next(w, r)
			return
		}
		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		slog.Warn("gateway: rate limit exceeded", "route", route.name, "ip", ip, "limit", limiter.Limit())
		gw.metrics.rateLimited.WithLabelValues(route.name).Inc()
		gw.broadcaster.send(SSEEvent{
			Type:    EventRateLimited,
			Payload: map[string]any{"route": route.name, "ip": ip},
		})
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":      "请求过于频繁",
			"message":    "请稍后再试",
			"retryAfter": retryAfter,
		})
	}
}

// withToken checks the {token} path segment against the configured webhook token.
// The mux never binds an empty {token}: "/webhook//forum/user" is cleaned and
// redirected first. The 401 branch covers handlers mounted without the mux.
func (gw *Gateway) withToken(route webhookRoute, next http.HandlerFunc) http.HandlerFunc {
	want := []byte(gw.cfg.Security.WebhookToken)
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.PathValue("token")
		if token == "" {
			gw.metrics.webhooks.WithLabelValues(route.name, outcomeUnauthorized).Inc()
			writeErrorMessage(w, http.StatusUnauthorized, "缺少认证令牌", "请使用正确的 Webhook URL")
			return
		}
		if len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			slog.Warn("gateway: invalid webhook token", "route", route.name, "ip", clientIP(r))
			gw.metrics.webhooks.WithLabelValues(route.name, outcomeForbidden).Inc()
			writeErrorMessage(w, http.StatusForbidden, "无效的认证令牌", "Webhook 令牌不正确")
			return
		}
		next(w, r)
	}
}
