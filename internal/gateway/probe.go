package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/CosmoTheDev/forumrelay/internal/config"
)

// Probe periodically checks that NapCat is reachable by sending the
// connection test message on a cron schedule.
type Probe struct {
	cfg   config.ProbeConfig
	cron  *cron.Cron
	runFn func(context.Context) bool

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

func newProbe(cfg config.ProbeConfig, runFn func(context.Context) bool) *Probe {
	return &Probe{cfg: cfg, cron: cron.New(), runFn: runFn}
}

// Start registers the schedule and starts the cron runner. It is a no-op when
// the probe is disabled.
func (p *Probe) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	expr := strings.TrimSpace(p.cfg.Schedule)
	if err := validateSchedule(expr); err != nil {
		return err
	}
	id, err := p.cron.AddFunc(expr, func() { p.fire(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	p.mu.Lock()
	p.entry = id
	p.running = true
	p.mu.Unlock()

	p.cron.Start()
	slog.Info("gateway: connection probe scheduled", "schedule", expr)
	return nil
}

// Stop halts the cron runner and waits for a running probe to finish.
func (p *Probe) Stop() {
	p.mu.Lock()
	running := p.running
	p.running = false
	p.mu.Unlock()
	if running {
		<-p.cron.Stop().Done()
	}
}

func (p *Probe) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.runFn(ctx)
}

// validateSchedule checks that expr is parseable by robfig/cron.
func validateSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("empty probe schedule")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", expr, err)
	}
	return nil
}
