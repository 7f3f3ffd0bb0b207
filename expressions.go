package fcmaes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sequence runs Opts[0] with Weights[0]*budget evaluations, feeds its best
// point (and a step-size derived from its final dispersion, or a default)
// forward as the next option's starting point, and so on, returning the
// best candidate seen across the whole chain. If a sub-run errors, the chain
// continues from the best point found so far rather than aborting outright.
// Each leg evaluates through its own copy of the Problem (its own
// evaluation counter), so a leg's budget and reported Evals count only that
// leg's evaluations.
type Sequence struct {
	Opts    []Optimizer
	Weights []float64
}

var _ Optimizer = (*Sequence)(nil)

// Minimize implements Optimizer for Sequence. A single-option Sequence with
// Weights []float64{1.0} is behaviorally identical to calling that option's
// Minimize directly: no evaluation is spent until a sub-run actually
// succeeds, so a chain that never runs anything (every option errors or gets
// zero budget) still costs only the one evaluation needed to score its
// starting point, and a chain of one successful option reports exactly that
// option's own X/F/Evals/Status.
func (s *Sequence) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	if len(s.Opts) == 0 {
		panic(errEmptyOptions)
	}
	if len(s.Weights) != len(s.Opts) {
		panic(errWeightMismatch)
	}

	x := x0
	sigma := sigma0
	var bestX []float64
	bestF := math.Inf(1)
	totalEvals := 0
	status := NotTerminated
	haveResult := false

	for i, opt := range s.Opts {
		budget := int(s.Weights[i] * float64(maxEvals))
		if budget <= 0 {
			continue
		}
		legProb := &Problem{Func: prob.Func, Bounds: prob.Bounds, Timeout: prob.Timeout, Safety: prob.Safety}
		result, err := opt.Minimize(legProb, x, sigma, budget, rngSeed+uint64(i))
		if err != nil {
			// Continue the chain from the best point found so far rather
			// than aborting; if nothing has succeeded yet, the next option
			// still starts from the caller's original x0.
			if haveResult {
				x, sigma = bestX, 0
			}
			continue
		}
		totalEvals += result.Evals
		if !haveResult || result.F < bestF {
			bestF = result.F
			bestX = result.X
		}
		haveResult = true
		x = result.X
		sigma = dispersionSigma(result, sigma0)
		status = result.Status
	}

	if !haveResult {
		fallback := x0
		if fallback == nil {
			fallback = prob.Bounds.Midpoint()
		}
		return Result{X: fallback, F: prob.Evaluate(fallback), Evals: 1, Status: status}, nil
	}

	return Result{X: bestX, F: bestF, Evals: totalEvals, Status: status}, nil
}

// dispersionSigma derives a next step-size from a completed sub-run's
// result. Without direct access to the sub-optimizer's internal spread, this
// falls back to a fraction of the original sigma0; a half-scale contraction
// models the expectation that the chain is converging and the next leg
// should search a tighter neighborhood.
func dispersionSigma(_ Result, sigma0 float64) float64 {
	if sigma0 <= 0 {
		return 0
	}
	return 0.5 * sigma0
}

// RandomChoice picks one optimizer per invocation according to the discrete
// distribution Probs over Opts, and gives the chosen optimizer the full
// evaluation budget.
type RandomChoice struct {
	Opts  []Optimizer
	Probs []float64
}

var _ Optimizer = (*RandomChoice)(nil)

// Minimize implements Optimizer for RandomChoice.
func (r *RandomChoice) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	if len(r.Opts) == 0 {
		panic(errEmptyOptions)
	}
	if len(r.Probs) != len(r.Opts) {
		panic(errWeightMismatch)
	}
	src := newRNG(rngSeed).src
	cat := distuv.NewCategorical(r.Probs, src)
	choice := int(cat.Rand())
	return r.Opts[choice].Minimize(prob, x0, sigma0, maxEvals, rngSeed+1)
}
