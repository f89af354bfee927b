package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/forumrelay/internal/forum"
)

func (gw *Gateway) handleSecurityInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "安全配置信息",
		"webhookToken":    gw.cfg.Security.WebhookToken,
		"secureEndpoints": gw.SecureEndpoints(),
		"note":            "请将这些安全地址配置到论坛的 Webhook 设置中",
	})
}

func (gw *Gateway) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if gw.dispatcher.TestConnection(r.Context()) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "QQ Bot 连接测试成功"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "QQ Bot 连接测试失败"})
}

type testMessageRequest struct {
	Message string `json:"message"`
}

func (gw *Gateway) handleTestMessage(w http.ResponseWriter, r *http.Request) {
	var req testMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "请求体过大", err.Error())
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "无效的 JSON 请求体", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "请提供测试消息内容",
			"example": testMessageRequest{Message: "这是一条测试消息"},
		})
		return
	}
	if gw.dispatcher.SendText(r.Context(), req.Message) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "测试消息发送成功"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "测试消息发送失败"})
}

// handleSimulateWebhook runs a canned forum payload through the same relay
// path a real webhook takes, bypassing token and rate limit.
func (gw *Gateway) handleSimulateWebhook(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("type")
	hook, kind, ok := forum.Sample(name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          "不支持的消息类型",
			"supportedTypes": forum.SampleNames,
		})
		return
	}
	raw, err := json.Marshal(hook)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status, result := gw.relay(r.Context(), routeForKind(kind), raw)
	if status == http.StatusOK {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"message":  fmt.Sprintf("模拟 %s Webhook 消息处理完成", name),
			"result":   result,
			"mockData": hook,
		})
		return
	}
	writeJSON(w, status, map[string]any{
		"success":  false,
		"message":  fmt.Sprintf("模拟 %s Webhook 消息处理失败", name),
		"error":    result,
		"mockData": hook,
	})
}

func (gw *Gateway) handleTestSecure(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("type")
	var route webhookRoute
	switch name {
	case forum.SampleUserPost:
		route = routeUserPost
	case forum.SampleAdminApproval:
		route = routeAdminPost
	case forum.SampleUserReply:
		route = routeUserReply
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":          "不支持的端点类型",
			"supportedTypes": forum.SampleNames,
		})
		return
	}

	endpoint := "http://localhost:" + strconv.Itoa(gw.cfg.Server.Port) + gw.securePath(route.path)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "安全 Webhook 端点信息",
		"type":        name,
		"endpoint":    endpoint,
		"token":       gw.cfg.Security.WebhookToken,
		"note":        "请使用此 URL 配置论坛的 Webhook",
		"curlExample": fmt.Sprintf(`curl -X POST %s -H "Content-Type: application/json" -d '{"test": "data"}'`, endpoint),
	})
}

// runProbe sends the connection test message and records the outcome. The
// cron probe calls it.
func (gw *Gateway) runProbe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ok := gw.dispatcher.TestConnection(ctx)
	result := "ok"
	if !ok {
		result = "failed"
	}
	gw.metrics.probes.WithLabelValues(result).Inc()

	gw.mu.Lock()
	gw.status.LastProbeAt = time.Now().UTC().Format(time.RFC3339)
	gw.status.LastProbeOK = &ok
	gw.mu.Unlock()

	gw.broadcaster.send(SSEEvent{Type: EventProbeResult, Payload: map[string]any{"ok": ok}})
	if ok {
		slog.Info("gateway: connection probe succeeded")
	} else {
		slog.Warn("gateway: connection probe failed", "configured", gw.dispatcher.IsConfigured())
	}
	return ok
}
