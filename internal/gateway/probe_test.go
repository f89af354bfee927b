package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/CosmoTheDev/forumrelay/internal/config"
)

func TestValidateSchedule(t *testing.T) {
	for _, expr := range []string{"@every 6h", "0 9 * * *", "@daily"} {
		if err := validateSchedule(expr); err != nil {
			t.Fatalf("validateSchedule(%q) = %v", expr, err)
		}
	}
	for _, expr := range []string{"", "not a cron", "61 * * * *"} {
		if err := validateSchedule(expr); err == nil {
			t.Fatalf("validateSchedule(%q) should fail", expr)
		}
	}
}

func TestProbeDisabledIsNoop(t *testing.T) {
	called := false
	p := newProbe(config.ProbeConfig{Enabled: false, Schedule: "garbage"}, func(context.Context) bool {
		called = true
		return true
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("disabled probe Start: %v", err)
	}
	p.Stop()
	if called {
		t.Fatal("disabled probe ran")
	}
}

func TestProbeRejectsInvalidSchedule(t *testing.T) {
	p := newProbe(config.ProbeConfig{Enabled: true, Schedule: "every tuesday"}, func(context.Context) bool { return true })
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
	p.Stop()
}

func TestRunProbeRecordsOutcome(t *testing.T) {
	ch := &fakeChannel{configured: true}
	gw, _ := newTestGateway(t, ch, nil)
	if !gw.runProbe(context.Background()) {
		t.Fatal("probe should succeed")
	}
	s := gw.currentStatus()
	if s.LastProbeOK == nil || !*s.LastProbeOK || s.LastProbeAt == "" {
		t.Fatalf("unexpected status after probe: %+v", s)
	}

	ch.err = errors.New("offline")
	if gw.runProbe(context.Background()) {
		t.Fatal("probe should fail")
	}
	if s := gw.currentStatus(); *s.LastProbeOK {
		t.Fatal("LastProbeOK should be false after a failed probe")
	}
}
