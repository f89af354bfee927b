package gateway

import (
	"fmt"
	"net/http"
	"time"
)

// buildHandler wires all routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	// Root/help
	mux.HandleFunc("GET /{$}", gw.handleRoot)
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", gw.handleStatus)

	// Token-protected forum webhooks
	for _, route := range webhookRoutes {
		mux.HandleFunc("POST /webhook/{token}/"+route.path, gw.handleWebhook(route))
	}

	// Diagnostics expose the webhook token, so they are development-only.
	if gw.cfg.IsDevelopment() {
		mux.HandleFunc("GET /security/info", gw.handleSecurityInfo)
		mux.HandleFunc("GET /test/connection", gw.handleTestConnection)
		mux.HandleFunc("POST /test/message", gw.handleTestMessage)
		mux.HandleFunc("POST /test/webhook/{type}", gw.handleSimulateWebhook)
		mux.HandleFunc("GET /test/secure/{type}", gw.handleTestSecure)
	}

	// Server-Sent Events stream
	mux.HandleFunc("GET /events", gw.handleEvents)

	if gw.cfg.Metrics.Enabled {
		path := gw.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, gw.metrics.handler())
	}

	mux.HandleFunc("/", handleNotFound)

	return withRequestLog(gw.withRecover(gw.withBodyLimit(mux)))
}

func (gw *Gateway) withBodyLimit(next http.Handler) http.Handler {
	limit := gw.cfg.Server.BodyLimitBytes
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

func (gw *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	ep := gw.SecureEndpoints()
	endpoints := []string{
		"POST " + ep.UserPost + " - 用户权限帖子过审通知",
		"POST " + ep.AdminPost + " - 管理员权限帖子过审通知",
		"POST " + ep.UserReply + " - 用户回帖通知",
		"POST " + ep.Generic + " - 论坛通知（自动识别类型）",
		"GET /health - 健康检查",
		"GET /events - 实时事件流",
	}
	if gw.cfg.IsDevelopment() {
		endpoints = append(endpoints, "GET /security/info - 安全配置信息")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "智教联盟论坛 QQ Bot 🤖",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"endpoints": endpoints,
	})
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	qq := "not configured"
	if gw.dispatcher.IsConfigured() {
		qq = "configured"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Uptime:    time.Since(gw.startedAt).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		QQBot:     qq,
		Security:  "enabled",
	})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.currentStatus())
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorMessage(w, http.StatusNotFound, "端点未找到", fmt.Sprintf("%s %s 不存在", r.Method, r.URL.RequestURI()))
}

func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if behind a proxy

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	// Send initial connected event with current status.
	if frame, err := encodeFrame(SSEEvent{Type: EventConnected, Payload: gw.currentStatus()}); err == nil {
		_, _ = w.Write(frame)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
