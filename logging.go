package fcmaes

import (
	"log"
	"time"
)

// Summary is a structured progress line emitted by the retry engines on a
// cadence of LogInterval. SimpleRetry fills Mean/Std/Top20 (there is no
// shared store to report on); CoordinatedRetry fills WorstStoreF/StoreSize
// instead and leaves Mean/Std zero, since its population is the store's
// entries rather than a flat list of independent run results.
type Summary struct {
	Elapsed     time.Duration
	EvalsPerSec float64
	Retries     int
	TotalEvals  int
	BestF       float64
	MeanF       float64
	StdF        float64
	WorstStoreF float64
	StoreSize   int
	Top20F      []float64
	BestX       []float64
	Coordinated bool
}

// Logger is the sink that receives Summary lines. It plays the role
// gonum/optimize.Recorder plays for local/global Method runs: the package
// has no default structured-logging dependency, and logging only happens if
// the caller supplies one.
type Logger interface {
	Log(Summary)
}

// StdLogger is the only built-in Logger, writing one line per Summary via
// the standard library's log package. No third-party structured logging
// library is used anywhere in the retrieved example pack (see DESIGN.md);
// this mirrors the teacher's own choice to ship no logging implementation
// at all beyond what the caller provides.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger wraps l (or the standard logger if l is nil).
func NewStdLogger(l *log.Logger) *StdLogger {
	if l == nil {
		l = log.Default()
	}
	return &StdLogger{Logger: l}
}

// Log implements Logger.
func (s *StdLogger) Log(sum Summary) {
	if sum.Coordinated {
		s.Printf("t=%s evals/s=%.1f retries=%d evals=%d best=%.6g worst_store=%.6g store=%d top20=%v best_x=%v",
			sum.Elapsed.Round(time.Millisecond), sum.EvalsPerSec, sum.Retries, sum.TotalEvals,
			sum.BestF, sum.WorstStoreF, sum.StoreSize, sum.Top20F, sum.BestX)
		return
	}
	s.Printf("t=%s evals/s=%.1f retries=%d evals=%d best=%.6g mean=%.6g std=%.6g top20=%v best_x=%v",
		sum.Elapsed.Round(time.Millisecond), sum.EvalsPerSec, sum.Retries, sum.TotalEvals,
		sum.BestF, sum.MeanF, sum.StdF, sum.Top20F, sum.BestX)
}
