package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/agents"
	"github.com/launchsentinel/core/consensus"
	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/eventbus"
	"github.com/launchsentinel/core/runledger"
)

func TestSubscriptionReceivesMatchingEvents(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{RunIDs: []string{"run-1"}})
	defer sub.Close()

	bus.Publish(eventbus.LiveEvent{RunID: "run-1", Type: eventbus.EventDecision, Severity: eventbus.SeverityInfo})
	bus.Publish(eventbus.LiveEvent{RunID: "run-2", Type: eventbus.EventDecision, Severity: eventbus.SeverityInfo})

	select {
	case evt := <-sub.Events:
		if evt.RunID != "run-1" {
			t.Fatalf("expected only run-1 events, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a delivered event")
	}

	select {
	case evt := <-sub.Events:
		t.Fatalf("expected no second event from run-2, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMinSeverityFiltersLowerSeverityEvents(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{MinSeverity: eventbus.SeverityError})
	defer sub.Close()

	bus.Publish(eventbus.LiveEvent{Type: eventbus.EventOpinion, Severity: eventbus.SeverityDebug})
	bus.Publish(eventbus.LiveEvent{Type: eventbus.EventOpinion, Severity: eventbus.SeverityCritical})

	select {
	case evt := <-sub.Events:
		if evt.Severity != eventbus.SeverityCritical {
			t.Fatalf("expected only the critical event, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the critical event to be delivered")
	}
}

func TestSlowConsumerDroppedWithTerminalEvent(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{})
	defer sub.Close()

	for i := 0; i < 400; i++ {
		bus.Publish(eventbus.LiveEvent{Type: eventbus.EventOpinion, Severity: eventbus.SeverityInfo})
	}

	sawSlowConsumer := false
	for i := 0; i < 400; i++ {
		select {
		case evt := <-sub.Events:
			if evt.Type == eventbus.EventSlowConsumer {
				sawSlowConsumer = true
			}
		case <-time.After(50 * time.Millisecond):
		}
	}
	if !sawSlowConsumer {
		t.Fatal("expected a terminal SLOW_CONSUMER event for an overwhelmed subscriber")
	}
}

func TestKillSwitchEventBypassesFilter(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{RunIDs: []string{"only-this-run"}})
	defer sub.Close()

	bus.PublishKillSwitch("kill switch engaged", 3)

	select {
	case evt := <-sub.Events:
		if evt.Type != eventbus.EventKillSwitch {
			t.Fatalf("expected a kill switch event, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected kill switch event to bypass the run-id filter")
	}
}

func TestPublishSecurityAlertImplementsAlertSink(t *testing.T) {
	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{})
	defer sub.Close()

	var sink envguard.AlertSink = bus
	sink.PublishSecurityAlert(envguard.SecurityAlert{
		Kind:      envguard.KindWrite,
		Name:      "submit_bundle",
		Mode:      envguard.ModeReadonly,
		Reason:    "environment is READONLY",
		Timestamp: time.Now(),
	})

	select {
	case evt := <-sub.Events:
		if evt.Type != eventbus.EventSecurityAlert {
			t.Fatalf("expected a security alert event, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the security alert to be published")
	}
}

func TestPlaybackEmitsEventsInOrder(t *testing.T) {
	ledger := runledger.NewLedger(zerolog.Nop())
	now := time.Now()
	record, _ := ledger.CreateRun("v1", agents.SignalBundle{}, now)
	ledger.AppendOpinion(record.RunID, consensus.AgentOpinion{Role: consensus.RoleScout}, now.Add(time.Millisecond))
	ledger.Freeze(record.RunID, runledger.StatusComplete, now.Add(2*time.Millisecond))

	bus := eventbus.New(zerolog.Nop())
	sub := bus.Subscribe(eventbus.Filter{RunIDs: []string{record.RunID}})
	defer sub.Close()

	playback, err := eventbus.NewPlayback(ledger, bus, record.RunID)
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	playback.Play(context.Background())

	seen := 0
	for i := 0; i < len(record.AuditLog); i++ {
		select {
		case evt := <-sub.Events:
			if want := eventbus.EventType(record.AuditLog[i].Tag); evt.Type != want {
				t.Fatalf("event %d: expected %s, got %s", i, want, evt.Type)
			}
			seen++
		case <-time.After(time.Second):
			t.Fatal("expected a replayed event")
		}
	}
	if seen != len(record.AuditLog) {
		t.Fatalf("expected %d replayed events, got %d", len(record.AuditLog), seen)
	}
}
