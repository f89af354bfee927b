package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/internal/forum"
	"github.com/CosmoTheDev/forumrelay/models"
)

// webhookRoute describes one token-protected forum endpoint.
type webhookRoute struct {
	name       string
	path       string
	kind       models.ForumEventKind // empty: classify from the title
	parse      func(*models.SlackWebhook) (models.ForumEvent, bool)
	sent       string
	unparsable string
	limit      func(config.RateLimitConfig) int
}

var (
	routeUserPost = webhookRoute{
		name:       "user",
		path:       "forum/user",
		kind:       models.KindUserPostApproval,
		parse:      forum.ParseUserPost,
		sent:       "用户帖子过审通知已发送",
		unparsable: "无法解析消息内容",
		limit:      func(c config.RateLimitConfig) int { return c.User },
	}
	routeAdminPost = webhookRoute{
		name:       "admin",
		path:       "forum/admin",
		kind:       models.KindAdminPostApproval,
		parse:      forum.ParseAdminApproval,
		sent:       "管理员帖子过审通知已发送",
		unparsable: "无法解析消息内容",
		limit:      func(c config.RateLimitConfig) int { return c.Admin },
	}
	routeUserReply = webhookRoute{
		name:       "reply",
		path:       "forum/reply",
		kind:       models.KindUserReply,
		parse:      forum.ParseReply,
		sent:       "用户回帖通知已发送",
		unparsable: "无法解析消息内容",
		limit:      func(c config.RateLimitConfig) int { return c.Reply },
	}
	routeGeneric = webhookRoute{
		name:       "generic",
		path:       "forum",
		parse:      forum.Parse,
		sent:       "论坛通知已发送",
		unparsable: "无法解析消息内容或不支持的消息类型",
		limit:      func(c config.RateLimitConfig) int { return c.Generic },
	}

	webhookRoutes = []webhookRoute{routeUserPost, routeAdminPost, routeUserReply, routeGeneric}
)

// routeForKind returns the fixed route that handles kind.
func routeForKind(kind models.ForumEventKind) webhookRoute {
	switch kind {
	case models.KindUserPostApproval:
		return routeUserPost
	case models.KindAdminPostApproval:
		return routeAdminPost
	case models.KindUserReply:
		return routeUserReply
	default:
		return routeGeneric
	}
}

// handleWebhook returns the handler for route, wrapped in rate limiting and
// token validation, in that order.
func (gw *Gateway) handleWebhook(route webhookRoute) http.HandlerFunc {
	h := func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErrorMessage(w, http.StatusRequestEntityTooLarge, "请求体过大", err.Error())
				return
			}
			writeErrorMessage(w, http.StatusBadRequest, "读取请求体失败", err.Error())
			return
		}
		status, body := gw.relay(r.Context(), route, raw)
		writeJSON(w, status, body)
	}
	return gw.withRateLimit(route, gw.withToken(route, h))
}

// relay decodes, parses and dispatches one webhook body. It returns the HTTP
// status and JSON body to send back. The simulate endpoint shares it.
func (gw *Gateway) relay(ctx context.Context, route webhookRoute, raw []byte) (int, map[string]any) {
	gw.record(func(s *RelayStatus) { s.Received++ })
	slog.Info("gateway: webhook received", "route", route.name, "bytes", len(raw))
	slog.Debug("gateway: webhook body", "route", route.name, "body", string(raw))
	gw.broadcaster.send(SSEEvent{Type: EventWebhookReceived, Payload: map[string]any{"route": route.name}})

	var hook models.SlackWebhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		return gw.rejectMalformed(route, raw)
	}

	evt, ok := route.parse(&hook)
	if !ok {
		err := forum.Diagnose(route.kind, &hook)
		if forum.IsMalformed(err) {
			return gw.rejectMalformed(route, raw)
		}
		gw.reject(route, outcomeUnparseable, string(forum.ReasonOf(err)))
		return http.StatusBadRequest, map[string]any{
			"error":   route.unparsable,
			"webhook": hook,
		}
	}

	start := time.Now()
	ok = gw.dispatcher.Dispatch(ctx, evt)
	gw.metrics.dispatchDur.Observe(time.Since(start).Seconds())

	if !ok {
		gw.metrics.webhooks.WithLabelValues(route.name, outcomeDispatchFailed).Inc()
		gw.record(func(s *RelayStatus) { s.Failed++ })
		gw.broadcaster.send(SSEEvent{Type: EventRelayFailed, Payload: evt})
		slog.Warn("gateway: relay failed", "route", route.name, "kind", evt.Kind, "title", evt.Title)
		return http.StatusInternalServerError, map[string]any{
			"error":  "发送 QQ 消息失败",
			"parsed": evt,
		}
	}

	gw.metrics.webhooks.WithLabelValues(route.name, outcomeDelivered).Inc()
	gw.record(func(s *RelayStatus) { s.Delivered++ })
	gw.broadcaster.send(SSEEvent{Type: EventRelayDelivered, Payload: evt})
	slog.Info("gateway: relay delivered", "route", route.name, "kind", evt.Kind, "title", evt.Title)

	body := map[string]any{
		"success": true,
		"message": route.sent,
		"parsed":  evt,
	}
	if route.kind == "" {
		body["type"] = evt.Kind
	}
	return http.StatusOK, body
}

func (gw *Gateway) rejectMalformed(route webhookRoute, raw []byte) (int, map[string]any) {
	gw.reject(route, outcomeMalformed, string(forum.ReasonMalformed))
	return http.StatusBadRequest, map[string]any{
		"error":    "无效的 Slack Webhook 消息格式",
		"received": rawOrString(raw),
	}
}

func (gw *Gateway) reject(route webhookRoute, outcome, reason string) {
	gw.metrics.webhooks.WithLabelValues(route.name, outcome).Inc()
	gw.record(func(s *RelayStatus) { s.Rejected++ })
	gw.broadcaster.send(SSEEvent{
		Type:    EventRelayRejected,
		Payload: map[string]any{"route": route.name, "reason": reason},
	})
	slog.Warn("gateway: webhook rejected", "route", route.name, "reason", reason)
}
