package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/launchsentinel/core/runledger"
)

// PlaybackState is the current state of a Playback controller.
type PlaybackState string

const (
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackDone    PlaybackState = "done"
)

// Playback drives replay of one run's audit log onto the bus, where
// every subscription whose filter matches the run id receives it,
// supporting play/pause/step/seek.
type Playback struct {
	mu     sync.Mutex
	ledger *runledger.Ledger
	bus    *Bus
	runID  string
	events []runledger.AuditEvent
	cursor int
	state  PlaybackState
	resume chan struct{}
	cancel context.CancelFunc
}

// NewPlayback loads runID's audit log from ledger for paced replay
// onto the bus. The run need not be frozen.
func NewPlayback(ledger *runledger.Ledger, bus *Bus, runID string) (*Playback, error) {
	record, ok := ledger.Get(runID)
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	events := append([]runledger.AuditEvent(nil), record.AuditLog...)
	return &Playback{
		ledger: ledger,
		bus:    bus,
		runID:  runID,
		events: events,
		state:  PlaybackPaused,
		resume: make(chan struct{}, 1),
	}, nil
}

// Play starts (or resumes) emission from the current cursor position.
func (p *Playback) Play(ctx context.Context) {
	p.mu.Lock()
	if p.state == PlaybackPlaying || p.state == PlaybackDone {
		p.mu.Unlock()
		return
	}
	p.state = PlaybackPlaying
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(runCtx)
}

// Pause halts emission after the event currently in flight.
func (p *Playback) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PlaybackPlaying {
		p.state = PlaybackPaused
		if p.cancel != nil {
			p.cancel()
		}
	}
}

// Step emits exactly one event regardless of play state, advancing
// the cursor by one.
func (p *Playback) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor >= len(p.events) {
		p.state = PlaybackDone
		return
	}
	p.emitLocked(p.events[p.cursor])
	p.cursor++
}

// Seek repositions the cursor to index, clamped to the log bounds,
// without emitting anything.
func (p *Playback) Seek(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(p.events) {
		index = len(p.events)
	}
	p.cursor = index
	if p.cursor < len(p.events) {
		p.state = PlaybackPaused
	}
}

func (p *Playback) run(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.state != PlaybackPlaying || p.cursor >= len(p.events) {
			if p.cursor >= len(p.events) {
				p.state = PlaybackDone
			}
			p.mu.Unlock()
			return
		}
		idx := p.cursor
		evt := p.events[idx]
		var gap time.Duration
		if idx > 0 {
			gap = evt.Timestamp.Sub(p.events[idx-1].Timestamp)
		}
		p.mu.Unlock()

		if gap < 0 {
			gap = 0
		}
		if gap > maxReplayGapEventbus {
			gap = maxReplayGapEventbus
		}
		if gap > 0 {
			timer := time.NewTimer(gap)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		p.mu.Lock()
		if p.state != PlaybackPlaying {
			p.mu.Unlock()
			return
		}
		p.emitLocked(evt)
		p.cursor++
		p.mu.Unlock()
	}
}

func (p *Playback) emitLocked(evt runledger.AuditEvent) {
	data := evt.Details
	p.bus.Publish(LiveEvent{
		RunID:     p.runID,
		Timestamp: evt.Timestamp,
		Type:      EventType(evt.Tag),
		Severity:  SeverityInfo,
		Data:      data,
	})
}

// State reports the current playback state.
func (p *Playback) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

const maxReplayGapEventbus = 2 * time.Second
