package fcmaes

import (
	"math"
)

// DualAnnealingSettings configures DualAnnealing. Zero values select the
// defaults below, following the same "zero means default" convention as
// CMAESSettings/DESettings.
type DualAnnealingSettings struct {
	// InitTemp is the starting temperature. Zero selects 5230.0, the
	// conventional default for the generalized simulated annealing
	// visiting distribution this adapter uses.
	InitTemp float64
	// VisitParam (qv in the generalized SA literature) scales the Cauchy
	// visiting step by a factor of (qv-1); the step's tail shape is always
	// that of a standard Cauchy. Zero selects 2.62.
	VisitParam float64
	// AcceptParam controls the Metropolis acceptance criterion's
	// generalization (qa). Zero selects -5.0.
	AcceptParam float64
	// StopFitness stops the run once the best fitness is at or below this
	// value. Defaults to -Inf (disabled).
	StopFitness float64
}

func (s DualAnnealingSettings) withDefaults() DualAnnealingSettings {
	out := s
	if out.InitTemp == 0 {
		out.InitTemp = 5230.0
	}
	if out.VisitParam == 0 {
		out.VisitParam = 2.62
	}
	if out.AcceptParam == 0 {
		out.AcceptParam = -5.0
	}
	if out.StopFitness == 0 {
		out.StopFitness = math.Inf(-1)
	}
	return out
}

// DualAnnealing is a compact generalized simulated annealing adapter: it
// conforms to the Optimizer contract so it can be used anywhere a
// CMAES/DifferentialEvolution could be (standalone, or as a leg of
// Sequence/RandomChoice). Each call is fully self-contained (its own rng,
// its own temperature schedule), so concurrent calls across worker
// goroutines never share mutable state.
type DualAnnealing struct {
	Settings DualAnnealingSettings
}

var _ Optimizer = (*DualAnnealing)(nil)

// Minimize runs generalized simulated annealing: at each step a candidate is
// drawn from a heavy-tailed visiting distribution centered on the current
// point and scaled by both the annealing temperature and sigma0 (or the
// box's default scale), repaired into bounds by reflection, and accepted
// outright if it improves or probabilistically otherwise.
func (da *DualAnnealing) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	settings := da.Settings.withDefaults()
	bounds := prob.Bounds
	n := bounds.Dim()
	r := newRNG(rngSeed)

	if maxEvals <= 0 {
		x := x0
		if x == nil {
			x = bounds.Midpoint()
		}
		f := prob.Evaluate(x)
		return Result{X: x, F: f, Evals: 1, Status: NotTerminated}, nil
	}

	scale := bounds.Scale()
	step := sigma0
	if step <= 0 {
		var mean float64
		for _, v := range scale {
			mean += v
		}
		step = 0.3 * mean / float64(n)
	}

	x := make([]float64, n)
	if x0 != nil {
		copy(x, x0)
	} else {
		copy(x, bounds.Midpoint())
	}
	f := prob.Evaluate(x)

	bestX := append([]float64(nil), x...)
	bestF := f

	status := NotTerminated
	for it := 1; prob.Evaluations() < maxEvals; it++ {
		temp := settings.InitTemp / math.Log(float64(it)+1)
		if temp < 1e-12 {
			temp = 1e-12
		}

		cand := make([]float64, n)
		for j := 0; j < n; j++ {
			visit := visitingStep(r, settings.VisitParam, temp)
			cand[j] = x[j] + visit*step*scale[j]
		}
		bounds.Reflect(cand)
		fc := prob.Evaluate(cand)

		accept := fc < f
		if !accept {
			delta := fc - f
			pqa := 1.0
			denom := 1 + (settings.AcceptParam-1)*delta/temp
			if denom > 0 {
				pqa = math.Pow(denom, 1/(1-settings.AcceptParam))
			} else {
				pqa = 0
			}
			if r.Float64() < pqa {
				accept = true
			}
		}
		if accept {
			x, f = cand, fc
		}
		if fc < bestF {
			bestF = fc
			bestX = append(bestX[:0], cand...)
		}

		if bestF <= settings.StopFitness {
			status = StopFitness
			break
		}
		if prob.Evaluations() >= maxEvals {
			status = StopMaxEvals
			break
		}
	}

	return Result{X: bestX, F: bestF, Evals: prob.Evaluations(), Status: status}, nil
}

// visitingStep draws a heavy-tailed visiting step: the package rng's
// standard Cauchy draw (a Student's t with Nu=1) scaled by sqrt(temp) and by
// (qv-1). qv changes only the width of the step, not its tail weight; the
// full generalized-SA visiting distribution is not implemented.
func visitingStep(r *rng, qv, temp float64) float64 {
	return r.Cauchy() * math.Sqrt(temp) * (qv - 1)
}
