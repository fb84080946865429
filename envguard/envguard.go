// Package envguard is the process-wide gate for every write operation.
// It is the only permitted way to decide whether a write may proceed —
// callers must never inline-check the mode themselves.
package envguard

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/config"
)

// Mode is the process-wide operating mode.
type Mode string

const (
	ModeDemo           Mode = "DEMO"
	ModeReadonly       Mode = "READONLY"
	ModeManualApproval Mode = "MANUAL_APPROVAL"
	ModeAutonomous     Mode = "AUTONOMOUS"
)

// Kind classifies the operation being validated.
type Kind string

const (
	KindRead  Kind = "read"
	KindWrite Kind = "write"
	KindAdmin Kind = "admin"
)

// Decision is the result of a validate call.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	RequiresApproval bool   `json:"requiresApproval"`
	Simulated        bool   `json:"simulated"`
	Reason           string `json:"reason,omitempty"`
}

// SecurityAlert is emitted for every denied write, never silently dropped.
type SecurityAlert struct {
	Kind      Kind
	Name      string
	Mode      Mode
	Reason    string
	Timestamp time.Time
}

// AlertSink receives every SecurityAlert the guard produces. Implemented
// by eventbus.Bus in the wired system; kept as a narrow interface here
// to avoid an import cycle between envguard and eventbus.
type AlertSink interface {
	PublishSecurityAlert(SecurityAlert)
}

type noopSink struct{}

func (noopSink) PublishSecurityAlert(SecurityAlert) {}

// Guard is the process-wide singleton mode gate.
type Guard struct {
	mu         sync.RWMutex
	mode       Mode
	killSwitch bool
	logger     zerolog.Logger
	sink       AlertSink
}

// New constructs the Guard from process configuration. The initial mode
// is read once at startup and is stable thereafter except via explicit
// admin calls.
func New(cfg *config.Config, logger zerolog.Logger) *Guard {
	return &Guard{
		mode:       Mode(cfg.InitialMode),
		killSwitch: cfg.KillSwitchActive,
		logger:     logger.With().Str("component", "envguard").Logger(),
		sink:       noopSink{},
	}
}

// SetAlertSink wires the live event bus once it is constructed.
func (g *Guard) SetAlertSink(sink AlertSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sink == nil {
		sink = noopSink{}
	}
	g.sink = sink
}

// Mode returns the current mode.
func (g *Guard) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// KillSwitchActive reports whether the kill switch is engaged.
func (g *Guard) KillSwitchActive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.killSwitch
}

// SetMode is an explicit admin call transitioning the process mode.
func (g *Guard) SetMode(m Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = m
	g.logger.Info().Str("mode", string(m)).Msg("environment mode changed")
}

// EngageKillSwitch flips the kill switch on. Reactivation requires a
// separate explicit admin call to DisengageKillSwitch.
func (g *Guard) EngageKillSwitch() {
	g.mu.Lock()
	g.killSwitch = true
	g.mu.Unlock()
	g.logger.Warn().Msg("kill switch engaged")
}

// DisengageKillSwitch reactivates the guard after a kill switch event.
func (g *Guard) DisengageKillSwitch() {
	g.mu.Lock()
	g.killSwitch = false
	g.mu.Unlock()
	g.logger.Info().Msg("kill switch disengaged")
}

// Validate is the single gate every read/write/admin operation must pass
// through. See spec.md §4.2 for the rule table.
func (g *Guard) Validate(kind Kind, name string) Decision {
	g.mu.RLock()
	mode := g.mode
	killed := g.killSwitch
	g.mu.RUnlock()

	if kind != KindWrite && kind != KindAdmin {
		return Decision{Allowed: true}
	}

	if killed {
		d := Decision{Allowed: false, Reason: "kill switch active"}
		g.deny(kind, name, mode, d.Reason)
		return d
	}

	switch mode {
	case ModeDemo:
		return Decision{Allowed: true, Simulated: true}
	case ModeReadonly:
		d := Decision{Allowed: false, Reason: "environment is READONLY"}
		g.deny(kind, name, mode, d.Reason)
		return d
	case ModeManualApproval:
		return Decision{Allowed: true, RequiresApproval: true}
	case ModeAutonomous:
		return Decision{Allowed: true}
	default:
		d := Decision{Allowed: false, Reason: "unknown mode " + string(mode)}
		g.deny(kind, name, mode, d.Reason)
		return d
	}
}

func (g *Guard) deny(kind Kind, name string, mode Mode, reason string) {
	g.logger.Warn().
		Str("kind", string(kind)).
		Str("name", name).
		Str("mode", string(mode)).
		Str("reason", reason).
		Msg("WRITE_BLOCKED")

	g.mu.RLock()
	sink := g.sink
	g.mu.RUnlock()
	sink.PublishSecurityAlert(SecurityAlert{
		Kind:      kind,
		Name:      name,
		Mode:      mode,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}
