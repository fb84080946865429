package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/launchsentinel/core/envguard"
)

const (
	defaultBufferSize   = 256
	defaultHeartbeatGap = 15 * time.Second
)

// Subscription is one filtered, single-threaded-delivery consumer of
// the bus.
type Subscription struct {
	ID     string
	Events <-chan LiveEvent

	bus    *Bus
	filter Filter
	ch     chan LiveEvent
	done   chan struct{}
	once   sync.Once
}

// Close unregisters the subscription and stops its heartbeat.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.bus.unsubscribe(s.ID)
	})
}

// Bus is the process-wide live event fan-out.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	bufferSize    int
	heartbeatGap  time.Duration
	logger        zerolog.Logger
}

// New constructs an empty Bus with the default buffer size and
// heartbeat period.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    defaultBufferSize,
		heartbeatGap:  defaultHeartbeatGap,
		logger:        logger.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe registers a new filtered subscription and starts its
// heartbeat ticker. Callers must Close the subscription when done.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	ch := make(chan LiveEvent, b.bufferSize)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Events: ch,
		bus:    b,
		filter: filter,
		ch:     ch,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.mu.Unlock()

	go b.heartbeatLoop(sub)
	return sub
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
}

func (b *Bus) heartbeatLoop(sub *Subscription) {
	ticker := time.NewTicker(b.heartbeatGap)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case <-ticker.C:
			b.deliver(sub, LiveEvent{
				ID:        uuid.NewString(),
				Timestamp: time.Now().UTC(),
				Type:      EventHeartbeat,
				Severity:  SeverityInfo,
			})
		}
	}
}

// Publish fans evt out to every subscription whose filter matches it.
// Delivery never blocks the publisher: a subscription whose buffer is
// full is dropped with a terminal SLOW_CONSUMER event.
func (b *Bus) Publish(evt LiveEvent) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.filter.matches(evt) {
			continue
		}
		b.deliver(sub, evt)
	}
}

func (b *Bus) deliver(sub *Subscription, evt LiveEvent) {
	select {
	case sub.ch <- evt:
		return
	default:
	}

	select {
	case <-sub.done:
		return
	default:
	}

	b.logger.Warn().Str("subscription_id", sub.ID).Msg("slow consumer dropped")
	// Free one slot so the terminal event always fits.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- LiveEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      EventSlowConsumer,
		Severity:  SeverityCritical,
		Message:   "subscription buffer exhausted, dropping consumer",
	}:
	default:
	}
	sub.Close()
}

// PublishKillSwitch emits the terminal KILL_SWITCH event every
// subscription should see regardless of filter, signaling that
// session keys have been revoked and submission has been halted.
func (b *Bus) PublishKillSwitch(reason string, revokedSessions int) {
	b.Publish(LiveEvent{
		Type:     EventKillSwitch,
		Severity: SeverityCritical,
		Message:  reason,
		Data: map[string]interface{}{
			"revokedSessions": revokedSessions,
		},
	})
}

// PublishSecurityAlert implements envguard.AlertSink, letting the
// process-wide mode guard publish onto the live event bus without
// eventbus depending back on envguard's caller.
func (b *Bus) PublishSecurityAlert(alert envguard.SecurityAlert) {
	b.Publish(LiveEvent{
		Timestamp: alert.Timestamp,
		Type:      EventSecurityAlert,
		Severity:  SeverityCritical,
		Message:   alert.Reason,
		Data: map[string]interface{}{
			"kind": string(alert.Kind),
			"name": alert.Name,
			"mode": string(alert.Mode),
		},
	})
}
