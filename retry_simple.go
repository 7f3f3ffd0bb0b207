package fcmaes

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gonum.org/v1/gonum/stat"
)

// RetrySettings configures SimpleRetry. Zero values select defaults chosen
// to behave reasonably for a caller who supplies nothing: a single
// sequential worker and no filtering of the reported statistics.
type RetrySettings struct {
	// Workers bounds the number of concurrently in-flight runs. Zero
	// selects 1 (sequential).
	Workers int
	// ImprovementThreshold selects which runs contribute to the mean/std
	// statistics: only runs whose F is below this value are included.
	// Zero disables filtering (all finite runs are included).
	ImprovementThreshold float64
	// LogInterval is the cadence at which a Summary is emitted to Logger.
	// Zero disables periodic logging (a final Summary is still emitted).
	LogInterval time.Duration
	Logger      Logger
}

func (s RetrySettings) withDefaults() RetrySettings {
	out := s
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.ImprovementThreshold == 0 {
		out.ImprovementThreshold = math.Inf(1)
	}
	return out
}

// SimpleRetry fans num_retries independent runs of optimizer out across a
// bounded worker pool, each with a fresh rng seed, a default initial guess
// uniform in bounds, and default sigma = 0.3*scale, and aggregates the best
// candidate plus summary statistics. Runs share no state (no elite store),
// so there is nothing to coordinate across workers beyond the worker-pool
// semaphore itself.
type SimpleRetry struct {
	Settings RetrySettings
}

// retryRun is the result of one independent optimization attempt.
type retryRun struct {
	x     []float64
	f     float64
	evals int
}

// Minimize runs numRetries independent instances of optimizer against prob
// and returns the best result found, with Evals set to the sum of all
// evaluations consumed across every retry. Each run evaluates through its
// own copy of prob (same objective, bounds, timeout and safety policy, its
// own evaluation counter), so maxEvalsPerRun applies to each run separately.
func (sr *SimpleRetry) Minimize(prob *Problem, optimizer Optimizer, bounds Bounds, numRetries int, maxEvalsPerRun int, baseSeed uint64) (Result, error) {
	settings := sr.Settings.withDefaults()
	start := time.Now()
	scale := bounds.Scale()
	var meanScale float64
	for _, v := range scale {
		meanScale += v
	}
	meanScale /= float64(len(scale))
	defaultSigma := 0.3 * meanScale

	results := make([]retryRun, 0, numRetries)
	var mu sync.Mutex

	sem := semaphore.NewWeighted(int64(settings.Workers))
	var wg sync.WaitGroup
	var logMu sync.Mutex
	lastLog := start

	for i := 0; i < numRetries; i++ {
		if err := sem.Acquire(context.Background(), 1); err != nil {
			return Result{}, err
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			seed := baseSeed + uint64(i)
			r := newRNG(seed)
			x0 := r.UniformInBounds(bounds)
			runProb := &Problem{Func: prob.Func, Bounds: prob.Bounds, Timeout: prob.Timeout, Safety: prob.Safety}
			res, err := optimizer.Minimize(runProb, x0, defaultSigma, maxEvalsPerRun, seed)
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, retryRun{x: res.X, f: res.F, evals: res.Evals})
			count := len(results)
			mu.Unlock()

			if settings.LogInterval > 0 {
				logMu.Lock()
				if time.Since(lastLog) >= settings.LogInterval {
					lastLog = time.Now()
					sr.emitSummary(settings, results, count, start)
				}
				logMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if settings.Logger != nil {
		sr.emitSummary(settings, results, len(results), start)
	}

	if len(results) == 0 {
		return Result{Status: StopFitnessInvalid}, nil
	}

	best := results[0]
	totalEvals := 0
	for _, r := range results {
		totalEvals += r.evals
		if r.f < best.f {
			best = r
		}
	}
	return Result{X: best.x, F: best.f, Evals: totalEvals, Status: NotTerminated, Runtime: time.Since(start)}, nil
}

// emitSummary computes the mean/std over runs below ImprovementThreshold and
// emits a Summary. Filtering by ImprovementThreshold before computing the
// mean/std keeps a handful of stagnant/failed runs (F near +Inf) from
// swamping the statistic a caller actually wants: how the runs that found
// something are distributed.
func (sr *SimpleRetry) emitSummary(settings RetrySettings, results []retryRun, retries int, start time.Time) {
	if settings.Logger == nil {
		return
	}
	fs := make([]float64, len(results))
	totalEvals := 0
	for i, r := range results {
		fs[i] = r.f
		totalEvals += r.evals
	}
	sort.Float64s(fs)

	var included []float64
	for _, f := range fs {
		if f < settings.ImprovementThreshold {
			included = append(included, f)
		}
	}
	mean, std := meanStdOf(included)

	top := fs
	if len(top) > 20 {
		top = top[:20]
	}
	var bestX []float64
	bestF := math.Inf(1)
	for _, r := range results {
		if r.f < bestF {
			bestF = r.f
			bestX = r.x
		}
	}

	elapsed := time.Since(start)
	var evalsPerSec float64
	if elapsed > 0 {
		evalsPerSec = float64(totalEvals) / elapsed.Seconds()
	}

	settings.Logger.Log(Summary{
		Elapsed:     elapsed,
		EvalsPerSec: evalsPerSec,
		Retries:     retries,
		TotalEvals:  totalEvals,
		BestF:       bestF,
		MeanF:       mean,
		StdF:        std,
		Top20F:      append([]float64(nil), top...),
		BestX:       bestX,
	})
}

// meanStdOf returns the sample mean and standard deviation of xs, (0, 0)
// for an empty slice, and (xs[0], 0) for a single value (stat.MeanStdDev
// divides by len(xs)-1 and needs at least two elements).
func meanStdOf(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
