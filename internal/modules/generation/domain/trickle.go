package domain

import "time"

const (
	// TrickleQuiet is how long the target must hold still before
	// synthetic motion starts.
	TrickleQuiet = 1500 * time.Millisecond
	// TrickleTick is the evaluation cadence one step corresponds to.
	TrickleTick = 200 * time.Millisecond
	// TrickleHeadroom bounds how far the display may creep past the
	// target, and TrickleCeiling caps it short of 100.
	TrickleHeadroom = 5.0
	TrickleCeiling  = 99.0

	trickleRate    = 0.06
	trickleMinStep = 0.05
)

// Trickle smooths a bursty raw percentage into a display value that
// keeps creeping forward during quiet stretches without overtaking what
// the job has actually confirmed. Callers pass explicit times, so the
// machine stays correct under arbitrarily delayed evaluation: Advance
// applies however many whole ticks have elapsed since it last ran.
//
// The display never decreases, never drops below the latest target, and
// holds exactly at 0 and at 100. The zero value is ready to use.
type Trickle struct {
	target     float64
	display    float64
	quietSince time.Time
	evaluated  time.Time
}

// Observe feeds a new raw target. A changed target snaps the display up
// to it in the same call and restarts the quiet period; re-observing an
// unchanged target leaves the quiet period running.
func (t *Trickle) Observe(target float64, now time.Time) float64 {
	if target < 0 {
		target = 0
	} else if target > 100 {
		target = 100
	}
	if target == t.target {
		return t.display
	}
	t.target = target
	if t.display < target {
		t.display = target
	}
	t.quietSince = now
	t.evaluated = now
	return t.display
}

// Advance re-evaluates the display at now and returns it.
func (t *Trickle) Advance(now time.Time) float64 {
	if t.target <= 0 || t.target >= 100 {
		return t.display
	}
	quietEnd := t.quietSince.Add(TrickleQuiet)
	if now.Before(quietEnd) {
		return t.display
	}
	ceiling := t.target + TrickleHeadroom
	if ceiling > TrickleCeiling {
		ceiling = TrickleCeiling
	}
	if t.display >= ceiling {
		t.evaluated = now
		return t.display
	}
	start := t.evaluated
	if start.Before(quietEnd) {
		start = quietEnd
	}
	steps := int(now.Sub(start) / TrickleTick)
	for i := 0; i < steps; i++ {
		step := (ceiling - t.display) * trickleRate
		if step < trickleMinStep {
			step = trickleMinStep
		}
		t.display += step
		if t.display >= ceiling {
			t.display = ceiling
			break
		}
	}
	if steps > 0 {
		t.evaluated = start.Add(time.Duration(steps) * TrickleTick)
	}
	return t.display
}

func (t *Trickle) Display() float64 {
	return t.display
}

func (t *Trickle) Target() float64 {
	return t.target
}

// Reset returns the machine to its initial state for a fresh run.
func (t *Trickle) Reset() {
	*t = Trickle{}
}
