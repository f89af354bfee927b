package gateway

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SSE event types.
const (
	EventConnected       = "connected"
	EventGatewayStarted  = "gateway.started"
	EventWebhookReceived = "webhook.received"
	EventRelayDelivered  = "relay.delivered"
	EventRelayFailed     = "relay.failed"
	EventRelayRejected   = "relay.rejected"
	EventRateLimited     = "relay.rate_limited"
	EventProbeResult     = "probe.result"
)

// RelayStatus is a live snapshot of the gateway counters.
type RelayStatus struct {
	Configured    bool   `json:"configured"`
	Received      int64  `json:"received"`
	Delivered     int64  `json:"delivered"`
	Failed        int64  `json:"failed"`
	Rejected      int64  `json:"rejected"`
	LastEventAt   string `json:"last_event_at,omitempty"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
	LastProbeOK   *bool  `json:"last_probe_ok,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
	QQBot     string  `json:"qqBot"`
	Security  string  `json:"security"`
}

// SecureEndpoints are the token-bearing webhook paths to configure on the forum.
type SecureEndpoints struct {
	UserPost  string `json:"userPost"`
	AdminPost string `json:"adminPost"`
	UserReply string `json:"userReply"`
	Generic   string `json:"generic"`
}

// errorResponse is the body of every non-2xx JSON reply that carries no extra context.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
