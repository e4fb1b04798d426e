package domain

// PercentPolicy maps the current phase and counters onto the raw job
// percentage. The breakpoints (5, 90, 98, 100) are part of the UX
// contract; the fractions between them are tunable.
type PercentPolicy struct {
	IdleCeiling       float64
	PerSetupStep      float64
	GeneratingCeiling float64
	ReflectingCeiling float64
}

func DefaultPercentPolicy() PercentPolicy {
	return PercentPolicy{
		IdleCeiling:       5,
		PerSetupStep:      1,
		GeneratingCeiling: 90,
		ReflectingCeiling: 98,
	}
}

// Overall derives the raw percentage for a run. Band endpoints meet at
// the breakpoints so the value is continuous across phase changes.
func (p PercentPolicy) Overall(run RunState) float64 {
	switch run.Phase {
	case PhaseIdle:
		pct := float64(run.SetupSteps) * p.PerSetupStep
		if pct > p.IdleCeiling-1 {
			pct = p.IdleCeiling - 1
		}
		if pct < 0 {
			pct = 0
		}
		return pct
	case PhaseConcept:
		return p.IdleCeiling
	case PhaseGenerating:
		ratio := batchRatio(run.Batch)
		if run.ExpectedCards > 0 {
			if r := float64(len(run.Cards)) / float64(run.ExpectedCards); r > ratio {
				ratio = r
			}
		}
		return band(p.IdleCeiling, p.GeneratingCeiling, ratio)
	case PhaseReflecting:
		return band(p.GeneratingCeiling, p.ReflectingCeiling, batchRatio(run.Batch))
	case PhaseComplete:
		return 100
	default:
		return 0
	}
}

func batchRatio(b BatchProgress) float64 {
	if b.Total <= 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total)
}

func band(lo, hi, ratio float64) float64 {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return lo + (hi-lo)*ratio
}
