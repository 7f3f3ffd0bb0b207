package fcmaes

import "testing"

func TestCoordinatedRetryImprovesStore(t *testing.T) {
	bounds := unitBounds(6, 5)
	prob := NewProblem(rastrigin, bounds)
	cr := &CoordinatedRetry{Settings: AdvancedRetrySettings{
		Workers:      4,
		MaxEvalsInit: 500,
		MaxEvalsCap:  4000,
		Store:        StoreSettings{Capacity: 50},
	}}
	res, err := cr.Minimize(prob, &CMAES{}, bounds, 20, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Evals == 0 {
		t.Error("Evals = 0, want > 0")
	}
	if !bounds.Contains(res.X) {
		t.Errorf("result %v escaped bounds", res.X)
	}
}

func TestCoordinatedRetryStopsOnStopFitness(t *testing.T) {
	bounds := unitBounds(2, 5)
	prob := NewProblem(sphere, bounds)
	cr := &CoordinatedRetry{Settings: AdvancedRetrySettings{
		Workers:      1,
		MaxEvalsInit: 2000,
		MaxEvalsCap:  2000,
		StopFitness:  1.0,
		Store:        StoreSettings{Capacity: 20},
	}}
	res, err := cr.Minimize(prob, &CMAES{}, bounds, 200, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.F > 1.0 {
		t.Errorf("best F = %v, want <= StopFitness target 1.0", res.F)
	}
	if res.Evals >= 200*2000 {
		t.Errorf("Evals = %d, want fewer than all 200 runs' budget once StopFitness is met", res.Evals)
	}
}

func TestBudgetScheduleDoublesOverTime(t *testing.T) {
	b := newBudgetSchedule(100, 800, 8)
	first := b.next()
	if first != 100 {
		t.Errorf("first budget = %d, want 100", first)
	}
	// ratio 800/100 = 8 and 8 retries give step 1: the budget doubles on
	// every call until it reaches the cap.
	second := b.next()
	if second != 2*first {
		t.Errorf("second budget = %d, want %d", second, 2*first)
	}
	var last int
	for i := 0; i < 6; i++ {
		last = b.next()
	}
	if last < first {
		t.Errorf("budget should not decrease: first=%d last=%d", first, last)
	}
	if last > 800 {
		t.Errorf("budget exceeded cap: %d > 800", last)
	}
}

func TestCoordinatedRetryEmitsSummaryWithStoreSize(t *testing.T) {
	bounds := unitBounds(3, 5)
	prob := NewProblem(sphere, bounds)
	logger := &recordingLogger{}
	cr := &CoordinatedRetry{Settings: AdvancedRetrySettings{
		Workers:      2,
		MaxEvalsInit: 300,
		MaxEvalsCap:  1000,
		Store:        StoreSettings{Capacity: 20},
		Logger:       logger,
	}}
	_, err := cr.Minimize(prob, &CMAES{}, bounds, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(logger.sums) == 0 {
		t.Fatal("expected at least one Summary to be logged")
	}
	last := logger.sums[len(logger.sums)-1]
	if !last.Coordinated {
		t.Error("CoordinatedRetry summary should set Coordinated")
	}
	if last.StoreSize == 0 {
		t.Error("StoreSize = 0, want > 0")
	}
}
