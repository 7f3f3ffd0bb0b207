package fcmaes

import "testing"

func TestSimpleRetryReturnsBestInBounds(t *testing.T) {
	bounds := unitBounds(6, 5)
	prob := NewProblem(rastrigin, bounds)
	sr := &SimpleRetry{Settings: RetrySettings{Workers: 4}}
	res, err := sr.Minimize(prob, &CMAES{}, bounds, 8, 2000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != NotTerminated {
		t.Errorf("Status = %v, want NotTerminated", res.Status)
	}
	if res.Evals == 0 {
		t.Error("Evals = 0, want > 0")
	}
	if !bounds.Contains(res.X) {
		t.Errorf("result %v escaped bounds", res.X)
	}
}

func TestSimpleRetrySequentialWhenWorkersOne(t *testing.T) {
	bounds := unitBounds(3, 5)
	prob := NewProblem(sphere, bounds)
	sr := &SimpleRetry{}
	res, err := sr.Minimize(prob, &DifferentialEvolution{}, bounds, 3, 1000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.F < 0 {
		t.Errorf("F = %v, sphere is never negative", res.F)
	}
}

type recordingLogger struct {
	sums []Summary
}

func (l *recordingLogger) Log(s Summary) { l.sums = append(l.sums, s) }

func TestSimpleRetryEmitsFinalSummary(t *testing.T) {
	bounds := unitBounds(2, 5)
	prob := NewProblem(sphere, bounds)
	logger := &recordingLogger{}
	sr := &SimpleRetry{Settings: RetrySettings{Workers: 2, Logger: logger}}
	_, err := sr.Minimize(prob, &CMAES{}, bounds, 4, 500, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(logger.sums) == 0 {
		t.Fatal("expected at least one Summary to be logged")
	}
	last := logger.sums[len(logger.sums)-1]
	if last.Retries != 4 {
		t.Errorf("final Summary.Retries = %d, want 4", last.Retries)
	}
	if last.Coordinated {
		t.Error("SimpleRetry summary should not set Coordinated")
	}
}

func TestMeanStdEmptyIsZero(t *testing.T) {
	mean, std := meanStdOf(nil)
	if mean != 0 || std != 0 {
		t.Errorf("meanStdOf(nil) = (%v, %v), want (0, 0)", mean, std)
	}
}

func TestMeanStdSingleValue(t *testing.T) {
	mean, std := meanStdOf([]float64{4.2})
	if mean != 4.2 || std != 0 {
		t.Errorf("meanStdOf([4.2]) = (%v, %v), want (4.2, 0)", mean, std)
	}
}
