package fcmaes

import (
	"fmt"
	"testing"

	"gonum.org/v1/gonum/floats"
)

type cmaTestCase struct {
	name     string
	bounds   Bounds
	f        Func
	maxEvals int
	good     func(Result, error) error
}

func cmaTestCases() []cmaTestCase {
	return []cmaTestCase{
		{
			name:     "sphere-2d",
			bounds:   NewBounds([]float64{-5, -5}, []float64{5, 5}),
			f:        sphere,
			maxEvals: 8000,
			good: func(r Result, err error) error {
				if err != nil {
					return err
				}
				if r.F > 1e-4 {
					return errF("sphere-2d", r.F, 1e-4)
				}
				if !floats.EqualApprox(r.X, []float64{0, 0}, 1e-2) {
					return fmt.Errorf("sphere-2d: X = %v, want near origin", r.X)
				}
				return nil
			},
		},
		{
			name:     "sphere-10d",
			bounds:   unitBounds(10, 5),
			f:        sphere,
			maxEvals: 20000,
			good: func(r Result, err error) error {
				if err != nil {
					return err
				}
				if r.F > 1e-2 {
					return errF("sphere-10d", r.F, 1e-2)
				}
				return nil
			},
		},
	}
}

func TestCMAESMinimize(t *testing.T) {
	for _, tc := range cmaTestCases() {
		t.Run(tc.name, func(t *testing.T) {
			prob := NewProblem(tc.f, tc.bounds)
			cma := &CMAES{}
			res, err := cma.Minimize(prob, nil, 0, tc.maxEvals, 1)
			if err := tc.good(res, err); err != nil {
				t.Error(err)
			}
			if !tc.bounds.Contains(res.X) {
				t.Errorf("%s: result %v escaped bounds", tc.name, res.X)
			}
			// Run a second time to make sure there are no residual effects
			// from the first run (fresh Problem, same CMAES value).
			prob2 := NewProblem(tc.f, tc.bounds)
			res2, err2 := cma.Minimize(prob2, nil, 0, tc.maxEvals, 1)
			if err := tc.good(res2, err2); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestCMAESDeterministicWithFixedSeed(t *testing.T) {
	bounds := NewBounds([]float64{-5, -5}, []float64{5, 5})
	cma := &CMAES{Settings: CMAESSettings{Workers: 1}}

	prob1 := NewProblem(sphere, bounds)
	r1, err := cma.Minimize(prob1, nil, 0, 2000, 42)
	if err != nil {
		t.Fatal(err)
	}
	prob2 := NewProblem(sphere, bounds)
	r2, err := cma.Minimize(prob2, nil, 0, 2000, 42)
	if err != nil {
		t.Fatal(err)
	}
	if r1.F != r2.F {
		t.Errorf("same seed produced different results: %v vs %v", r1.F, r2.F)
	}
	if floats.Distance(r1.X, r2.X, 2) != 0 {
		t.Errorf("same seed produced different X: %v vs %v", r1.X, r2.X)
	}
}

func TestCMAESZeroBudgetIsIdempotent(t *testing.T) {
	bounds := NewBounds([]float64{-1, -1}, []float64{1, 1})
	prob := NewProblem(sphere, bounds)
	cma := &CMAES{}
	x0 := []float64{0.2, 0.3}
	res, err := cma.Minimize(prob, x0, 0.1, 0, 7)
	if err != nil {
		t.Fatal(err)
	}
	if res.Evals != 1 {
		t.Errorf("Evals = %d, want 1", res.Evals)
	}
	if res.X[0] != x0[0] || res.X[1] != x0[1] {
		t.Errorf("X = %v, want %v", res.X, x0)
	}
	if prob.Evaluations() != 1 {
		t.Errorf("Problem.Evaluations() = %d, want 1", prob.Evaluations())
	}
}

func TestCMAESRespectsMaxEvals(t *testing.T) {
	bounds := NewBounds([]float64{-5, -5}, []float64{5, 5})
	prob := NewProblem(sphere, bounds)
	cma := &CMAES{}
	_, err := cma.Minimize(prob, nil, 0, 100, 3)
	if err != nil {
		t.Fatal(err)
	}
	if prob.Evaluations() > 100+cma.Settings.withDefaults(2).Population {
		t.Errorf("Evaluations() = %d, budget was 100", prob.Evaluations())
	}
}

func TestCMAESParallelWorkersMatchSequentialBudget(t *testing.T) {
	bounds := NewBounds([]float64{-5, -5}, []float64{5, 5})
	prob := NewProblem(sphere, bounds)
	cma := &CMAES{Settings: CMAESSettings{Workers: 4}}
	res, err := cma.Minimize(prob, nil, 0, 4000, 11)
	if err != nil {
		t.Fatal(err)
	}
	if res.F > 1e-3 {
		t.Errorf("parallel CMAES: F = %v, want < 1e-3", res.F)
	}
	seqProb := NewProblem(sphere, bounds)
	seqRes, err := (&CMAES{}).Minimize(seqProb, nil, 0, 4000, 11)
	if err != nil {
		t.Fatal(err)
	}
	if prob.Evaluations() != seqProb.Evaluations() {
		t.Errorf("parallel CMAES used %d evaluations, sequential used %d", prob.Evaluations(), seqProb.Evaluations())
	}
	if res.F != seqRes.F {
		t.Errorf("parallel CMAES: F = %v, sequential F = %v with the same seed", res.F, seqRes.F)
	}
}

func unitBounds(n int, r float64) Bounds {
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range lo {
		lo[i] = -r
		hi[i] = r
	}
	return NewBounds(lo, hi)
}

func errF(name string, got, want float64) error {
	return fmt.Errorf("%s: F too large: got %g, want <= %g", name, got, want)
}
