package fcmaes

import "testing"

func TestDEMinimizeSphere(t *testing.T) {
	bounds := unitBounds(5, 5)
	prob := NewProblem(sphere, bounds)
	de := &DifferentialEvolution{}
	res, err := de.Minimize(prob, nil, 0, 30000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.F > 1e-2 {
		t.Errorf("DE sphere: F = %v, want <= 1e-2", res.F)
	}
	if !bounds.Contains(res.X) {
		t.Errorf("DE result %v escaped bounds", res.X)
	}
}

func TestDERespectsBounds(t *testing.T) {
	bounds := NewBounds([]float64{-1, -1}, []float64{1, 1})
	prob := NewProblem(rosenbrock, bounds)
	de := &DifferentialEvolution{}
	res, err := de.Minimize(prob, nil, 0, 5000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !bounds.Contains(res.X) {
		t.Errorf("DE result %v escaped bounds %v", res.X, bounds)
	}
}

func TestDEZeroBudgetIsIdempotent(t *testing.T) {
	bounds := NewBounds([]float64{-1, -1}, []float64{1, 1})
	prob := NewProblem(sphere, bounds)
	de := &DifferentialEvolution{}
	x0 := []float64{0.1, -0.2}
	res, err := de.Minimize(prob, x0, 0, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.Evals != 1 {
		t.Errorf("Evals = %d, want 1", res.Evals)
	}
	if res.X[0] != x0[0] || res.X[1] != x0[1] {
		t.Errorf("X = %v, want %v", res.X, x0)
	}
}

func TestDEStopsOnMaxEvals(t *testing.T) {
	bounds := unitBounds(3, 5)
	prob := NewProblem(sphere, bounds)
	de := &DifferentialEvolution{}
	res, err := de.Minimize(prob, nil, 0, 200, 9)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StopMaxEvals && res.Status != StopFitness {
		t.Errorf("Status = %v, want StopMaxEvals (or StopFitness if it got lucky)", res.Status)
	}
}

func TestPbestIndicesAtLeastOne(t *testing.T) {
	bounds := unitBounds(2, 1)
	run := NewDERun(DESettings{Population: 4, PBestFraction: 0.01}, bounds, nil, 1)
	for i := range run.pop {
		run.pop[i].f = float64(i)
	}
	idx := run.pbestIndices()
	if len(idx) < 1 {
		t.Fatalf("pbestIndices returned %d indices, want >= 1", len(idx))
	}
	if run.pop[idx[0]].f != 0 {
		t.Errorf("best index should have smallest f, got f=%v", run.pop[idx[0]].f)
	}
}
