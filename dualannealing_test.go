package fcmaes

import "testing"

func TestDualAnnealingMinimizeSphere(t *testing.T) {
	bounds := unitBounds(3, 5)
	prob := NewProblem(sphere, bounds)
	da := &DualAnnealing{}
	res, err := da.Minimize(prob, nil, 0, 10000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bounds.Contains(res.X) {
		t.Errorf("result %v escaped bounds", res.X)
	}
	if res.F > 5 {
		t.Errorf("DualAnnealing sphere: F = %v, want a reasonably small value", res.F)
	}
}

func TestDualAnnealingZeroBudgetIsIdempotent(t *testing.T) {
	bounds := unitBounds(2, 1)
	prob := NewProblem(sphere, bounds)
	da := &DualAnnealing{}
	x0 := []float64{0.1, 0.1}
	res, err := da.Minimize(prob, x0, 0.1, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Evals != 1 {
		t.Errorf("Evals = %d, want 1", res.Evals)
	}
}

func TestDualAnnealingStopsOnStopFitness(t *testing.T) {
	bounds := unitBounds(2, 5)
	prob := NewProblem(sphere, bounds)
	da := &DualAnnealing{Settings: DualAnnealingSettings{StopFitness: 10}}
	res, err := da.Minimize(prob, nil, 0, 20000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StopFitness && res.Status != StopMaxEvals {
		t.Errorf("Status = %v, want StopFitness or StopMaxEvals", res.Status)
	}
}
