// Package fcmaes implements a coordinated parallel-retry optimization engine
// over bound-constrained, possibly ill-conditioned, non-convex real-valued
// objectives. It provides CMA-ES and Differential Evolution as the primary
// search algorithms, Sequence/RandomChoice combinators over any Optimizer,
// and two retry engines (a simple fan-out and a coordinated engine backed by
// a shared elite store) that drive many short independent runs under a
// shrinking evaluation budget.
package fcmaes

import "time"

// Status reports why an optimization run stopped.
type Status int

const (
	// NotTerminated indicates the run has not yet converged or hit a limit.
	NotTerminated Status = iota
	// StopFitness indicates the best fitness fell below the target StopFitness.
	StopFitness
	// StopTolX indicates all coordinate standard deviations fell below TolX.
	StopTolX
	// StopTolFun indicates the spread of recent best values fell below TolFun.
	StopTolFun
	// StopMaxIter indicates the generation limit was reached.
	StopMaxIter
	// StopCondition indicates the covariance matrix became too ill-conditioned
	// to continue reliably.
	StopCondition
	// StopFitnessInvalid indicates every evaluation in a generation failed
	// (returned +Inf/NaN); the run is reported but its result is not admitted
	// anywhere that treats it as a real candidate.
	StopFitnessInvalid
	// StopMaxEvals indicates the evaluation budget for the run was exhausted.
	StopMaxEvals
	// StopCancelled indicates the caller cancelled the run cooperatively.
	StopCancelled
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "NotTerminated"
	case StopFitness:
		return "StopFitness"
	case StopTolX:
		return "StopTolX"
	case StopTolFun:
		return "StopTolFun"
	case StopMaxIter:
		return "StopMaxIter"
	case StopCondition:
		return "StopCondition"
	case StopFitnessInvalid:
		return "StopFitnessInvalid"
	case StopMaxEvals:
		return "StopMaxEvals"
	case StopCancelled:
		return "StopCancelled"
	default:
		return "Status(unknown)"
	}
}

// terminal reports whether a status other than NotTerminated was reached.
func (s Status) terminal() bool {
	return s != NotTerminated
}

// Candidate is a point and its objective value. F is +Inf for a failed or
// non-finite evaluation; that value must never poison aggregate statistics.
type Candidate struct {
	X []float64
	F float64
}

// Result is the outcome of a Minimize call: the best point found, its
// objective value, the total number of objective evaluations consumed, the
// stopping Status, and wall-clock runtime. Runtime is set only by the retry
// engines (SimpleRetry, CoordinatedRetry); the single-run optimizers and the
// combinators leave it zero.
type Result struct {
	X       []float64
	F       float64
	Evals   int
	Status  Status
	Runtime time.Duration
}

// Optimizer is the contract satisfied by every algorithm and combinator in
// this package: CMA-ES, Differential Evolution, Sequence, RandomChoice, and
// the Dual Annealing / Harris Hawks adapters.
type Optimizer interface {
	// Minimize drives the algorithm to a terminal Status and returns the
	// best candidate found. prob describes the objective and its bounds.
	// x0 and sigma0 are optional (nil/zero use algorithm defaults).
	Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error)
}

// resize returns a slice of length n, reusing x's backing array when it has
// sufficient capacity and allocating a new one otherwise.
func resize(x []float64, n int) []float64 {
	if cap(x) >= n {
		return x[:n]
	}
	return make([]float64, n)
}

// configuration error messages; these are panicked before any evaluation,
// matching gonum/optimize's nonpositiveDimension/negativeTasks convention.
const (
	errBoundsMismatch  = "fcmaes: lo and hi must have equal, positive length"
	errBoundsOrder     = "fcmaes: lo[i] must be strictly less than hi[i]"
	errNonpositivePop  = "fcmaes: population size must be positive"
	errNegativeWorkers = "fcmaes: workers must not be negative"
	errEmptyOptions    = "fcmaes: combinator requires at least one option"
	errWeightMismatch  = "fcmaes: weights/probs length must match options length"
)
