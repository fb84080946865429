package envguard_test

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/config"
	"github.com/launchsentinel/core/envguard"
)

func newGuard(mode envguard.Mode) *envguard.Guard {
	cfg := &config.Config{InitialMode: config.Mode(mode)}
	g := envguard.New(cfg, zerolog.New(io.Discard))
	return g
}

type capturingSink struct {
	alerts []envguard.SecurityAlert
}

func (c *capturingSink) PublishSecurityAlert(a envguard.SecurityAlert) {
	c.alerts = append(c.alerts, a)
}

func TestKillSwitchDeniesAllWrites(t *testing.T) {
	g := newGuard(envguard.ModeAutonomous)
	sink := &capturingSink{}
	g.SetAlertSink(sink)
	g.EngageKillSwitch()

	d := g.Validate(envguard.KindWrite, "submit_bundle")
	if d.Allowed {
		t.Fatalf("expected kill switch to deny write")
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("expected exactly one security alert, got %d", len(sink.alerts))
	}
}

func TestDemoModeSimulates(t *testing.T) {
	g := newGuard(envguard.ModeDemo)
	d := g.Validate(envguard.KindWrite, "submit_bundle")
	if !d.Allowed || !d.Simulated {
		t.Fatalf("expected demo mode to allow and simulate, got %+v", d)
	}
}

func TestReadonlyBlocksWritesAndAlertsOnce(t *testing.T) {
	g := newGuard(envguard.ModeReadonly)
	sink := &capturingSink{}
	g.SetAlertSink(sink)

	d := g.Validate(envguard.KindWrite, "submit_bundle")
	if d.Allowed {
		t.Fatalf("expected readonly mode to deny write")
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(sink.alerts))
	}

	readDecision := g.Validate(envguard.KindRead, "get_network_state")
	if !readDecision.Allowed {
		t.Fatalf("expected reads to be allowed in readonly mode")
	}
}

func TestManualApprovalRequiresApproval(t *testing.T) {
	g := newGuard(envguard.ModeManualApproval)
	d := g.Validate(envguard.KindWrite, "submit_bundle")
	if !d.Allowed || !d.RequiresApproval {
		t.Fatalf("expected manual approval mode to allow with requiresApproval, got %+v", d)
	}
}

func TestAutonomousAllowsWrites(t *testing.T) {
	g := newGuard(envguard.ModeAutonomous)
	d := g.Validate(envguard.KindWrite, "submit_bundle")
	if !d.Allowed || d.RequiresApproval || d.Simulated {
		t.Fatalf("expected plain allow in autonomous mode, got %+v", d)
	}
}
