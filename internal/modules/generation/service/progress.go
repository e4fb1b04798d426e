package service

import (
	"sync"
	"time"

	"deckhand/internal/modules/generation/domain"
	"deckhand/internal/platform/clock"
)

// ProgressSynthesizer owns the trickle state machine and the single
// timer that keeps it moving between real signals. Reads re-evaluate
// from elapsed time, so a stalled ticker or a delayed redraw never
// produces a wrong value.
type ProgressSynthesizer struct {
	mu      sync.Mutex
	clock   clock.Clock
	trickle domain.Trickle

	running bool
	stopCh  chan struct{}
}

func NewProgressSynthesizer(clk clock.Clock) *ProgressSynthesizer {
	return &ProgressSynthesizer{clock: clk}
}

// Observe feeds the latest raw percentage. A changed value snaps the
// display in the same call.
func (p *ProgressSynthesizer) Observe(target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trickle.Observe(target, p.clock.Now())
}

// Display returns the smoothed percentage, advancing the machine first.
func (p *ProgressSynthesizer) Display() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trickle.Advance(p.clock.Now())
}

func (p *ProgressSynthesizer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trickle.Reset()
}

// Start launches the tick loop. Calling Start on a running synthesizer
// is a no-op.
func (p *ProgressSynthesizer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	go p.loop(p.stopCh)
}

func (p *ProgressSynthesizer) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(domain.TrickleTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Display()
		}
	}
}

// Stop halts the tick loop. Safe to call repeatedly.
func (p *ProgressSynthesizer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
}
