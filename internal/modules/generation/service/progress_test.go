package service_test

import (
	"testing"

	"deckhand/internal/modules/generation/domain"
	"deckhand/internal/modules/generation/service"
)

func TestSynthesizerLoopLifecycle(t *testing.T) {
	t.Parallel()
	clk := newStepClock()
	synth := service.NewProgressSynthesizer(clk)

	synth.Start()
	synth.Start() // second Start must not spawn a second loop

	// The loop reads concurrently with the fold; mutate under it.
	synth.Observe(40)
	clk.advance(domain.TrickleQuiet + domain.TrickleTick)
	waitFor(t, "trickle past the held target", func() bool {
		return synth.Display() > 40
	})

	synth.Stop()
	synth.Stop() // repeated Stop is safe

	// A stopped synthesizer restarts cleanly.
	synth.Start()
	synth.Observe(100)
	if got := synth.Display(); got != 100 {
		t.Fatalf("display = %v, want 100", got)
	}
	synth.Stop()
}
