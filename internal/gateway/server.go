package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/CosmoTheDev/forumrelay/internal/config"
	"github.com/CosmoTheDev/forumrelay/internal/notify"
)

// Gateway is the long-running webhook service. It combines:
//   - the token-protected webhook routes that parse and relay forum events
//   - diagnostic endpoints (health, test sends, simulated webhooks)
//   - an SSE stream and Prometheus metrics
//   - an optional cron probe of the NapCat connection
type Gateway struct {
	cfg         *config.Config
	dispatcher  *notify.Dispatcher
	broadcaster *Broadcaster
	metrics     *relayMetrics
	probe       *Probe
	limiters    map[string]*FixedWindowLimiter

	mu        sync.RWMutex
	status    RelayStatus
	startedAt time.Time
}

// New creates a Gateway. cfg.Security.WebhookToken must already be set.
// Call Start() to begin serving.
func New(cfg *config.Config, d *notify.Dispatcher) *Gateway {
	gw := &Gateway{
		cfg:         cfg,
		dispatcher:  d,
		broadcaster: newBroadcaster(),
		metrics:     newRelayMetrics(),
		startedAt:   time.Now(),
	}
	window := time.Duration(cfg.Security.RateLimits.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	gw.limiters = make(map[string]*FixedWindowLimiter, len(webhookRoutes))
	for _, route := range webhookRoutes {
		gw.limiters[route.name] = NewFixedWindowLimiter(window, route.limit(cfg.Security.RateLimits))
	}
	gw.probe = newProbe(cfg.Probe, gw.runProbe)
	return gw
}

// Addr returns the listen address derived from config.
func (gw *Gateway) Addr() string {
	host := gw.cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(gw.cfg.Server.Port))
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the connection probe when one is scheduled
//  2. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	if err := gw.probe.Start(ctx); err != nil {
		slog.Warn("gateway: connection probe disabled", "schedule", gw.cfg.Probe.Schedule, "error", err)
	}

	addr := gw.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shut down HTTP server when ctx is cancelled.
	go func() {
		<-ctx.Done()
		gw.probe.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{
		Type:    EventGatewayStarted,
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// SecureEndpoints returns the token-bearing webhook paths.
func (gw *Gateway) SecureEndpoints() SecureEndpoints {
	return SecureEndpoints{
		UserPost:  gw.securePath(routeUserPost.path),
		AdminPost: gw.securePath(routeAdminPost.path),
		UserReply: gw.securePath(routeUserReply.path),
		Generic:   gw.securePath(routeGeneric.path),
	}
}

func (gw *Gateway) securePath(suffix string) string {
	return "/webhook/" + gw.cfg.Security.WebhookToken + "/" + suffix
}

func (gw *Gateway) currentStatus() RelayStatus {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	s := gw.status
	s.Configured = gw.dispatcher.IsConfigured()
	s.UptimeSeconds = int64(time.Since(gw.startedAt).Seconds())
	return s
}

// record updates the in-memory counters. Only aggregate numbers are kept.
func (gw *Gateway) record(fn func(s *RelayStatus)) {
	gw.mu.Lock()
	fn(&gw.status)
	gw.status.LastEventAt = time.Now().UTC().Format(time.RFC3339)
	gw.mu.Unlock()
}
