package fcmaes

import (
	"math"
	"testing"
	"time"
)

func TestProblemCountsEvaluations(t *testing.T) {
	bounds := unitBounds(2, 1)
	p := NewProblem(sphere, bounds)
	for i := 0; i < 5; i++ {
		p.Evaluate([]float64{0, 0})
	}
	if p.Evaluations() != 5 {
		t.Errorf("Evaluations() = %d, want 5", p.Evaluations())
	}
}

func TestProblemSanitizesNaNAndNegInf(t *testing.T) {
	bounds := unitBounds(1, 1)
	p := NewProblem(func(x []float64) float64 { return math.NaN() }, bounds)
	if f := p.Evaluate([]float64{0}); !math.IsInf(f, 1) {
		t.Errorf("Evaluate with NaN objective = %v, want +Inf", f)
	}
	p2 := NewProblem(func(x []float64) float64 { return math.Inf(-1) }, bounds)
	if f := p2.Evaluate([]float64{0}); !math.IsInf(f, 1) {
		t.Errorf("Evaluate with -Inf objective = %v, want +Inf", f)
	}
}

func TestProblemRecoversFromPanic(t *testing.T) {
	bounds := unitBounds(1, 1)
	p := NewProblem(func(x []float64) float64 { panic("boom") }, bounds)
	f := p.Evaluate([]float64{0})
	if !math.IsInf(f, 1) {
		t.Errorf("Evaluate with panicking objective = %v, want +Inf", f)
	}
}

func TestProblemTimeout(t *testing.T) {
	bounds := unitBounds(1, 1)
	p := NewProblem(func(x []float64) float64 {
		time.Sleep(50 * time.Millisecond)
		return 0
	}, bounds)
	p.Timeout = 5 * time.Millisecond
	f := p.Evaluate([]float64{0})
	if !math.IsInf(f, 1) {
		t.Errorf("Evaluate past timeout = %v, want +Inf", f)
	}
}

func TestNewProblemPanicsOnNilFunc(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil objective")
		}
	}()
	NewProblem(nil, unitBounds(1, 1))
}
