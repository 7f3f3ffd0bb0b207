package fcmaes

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// AdvancedRetrySettings configures CoordinatedRetry. Zero values select
// conservative defaults tuned so a caller who supplies nothing still gets a
// sane single-worker, capacity-bounded retry schedule.
type AdvancedRetrySettings struct {
	Store AdvancedStoreSettings
	// Workers bounds concurrently in-flight runs. Zero selects 1.
	Workers int
	// MaxEvalsInit is the initial per-run evaluation budget B. Zero
	// selects 1500.
	MaxEvalsInit int
	// MaxEvalsCap is the ceiling B grows to. Zero selects 50000.
	MaxEvalsCap int
	// StopFitness ends the run early once the store's global best falls
	// at or below this value. Defaults to -Inf (disabled).
	StopFitness float64
	// WallClock, if positive, bounds total run time; in-flight runs are
	// allowed to finish (killing a worker mid-run would leave the store in
	// an inconsistent state, crediting parents for a seed that never
	// finished) but no new ones are dispatched once it elapses.
	WallClock   time.Duration
	LogInterval time.Duration
	Logger      Logger
}

// AdvancedStoreSettings is an alias of StoreSettings: the two names denote
// the same type, and either can be used for AdvancedRetrySettings.Store.
type AdvancedStoreSettings = StoreSettings

func (s AdvancedRetrySettings) withDefaults() AdvancedRetrySettings {
	out := s
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.MaxEvalsInit == 0 {
		out.MaxEvalsInit = 1500
	}
	if out.MaxEvalsCap == 0 {
		out.MaxEvalsCap = 50000
	}
	if out.StopFitness == 0 {
		out.StopFitness = math.Inf(-1)
	}
	return out
}

// CoordinatedRetry is the advanced retry engine: a shared elite Store seeds
// later runs by crossover-like recombination of earlier elites, under a
// per-run evaluation budget that doubles on a schedule tied to the total
// retry count, so early runs stay cheap while the store is still mostly
// empty and later runs get to spend more effort refining a population that
// has already converged on promising regions.
type CoordinatedRetry struct {
	Settings AdvancedRetrySettings
}

// budgetSchedule tracks the current per-run evaluation budget B and doubles
// it (capped) at a fixed cadence of calls to next, guarded by a mutex since
// every worker consults and may advance it concurrently.
type budgetSchedule struct {
	mu        sync.Mutex
	current   int
	cap       int
	step      int
	completed int
}

func newBudgetSchedule(initial, cap, numRetries int) *budgetSchedule {
	ratio := float64(cap) / float64(initial)
	step := int(math.Ceil(float64(numRetries) / math.Max(ratio, 1)))
	if step < 1 {
		step = 1
	}
	return &budgetSchedule{current: initial, cap: cap, step: step}
}

// next returns the current budget and counts one more retry, doubling the
// budget (capped) every `step` calls. Minimize calls it as each run is
// dispatched, before the run starts, so the cadence counts dispatched runs,
// not completed ones.
func (b *budgetSchedule) next() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.current
	b.completed++
	if b.completed%b.step == 0 && b.current < b.cap {
		b.current = min(b.current*2, b.cap)
	}
	return cur
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Minimize drives the coordinated retry engine against prob using optimizer
// as the per-run algorithm, for up to numRetries runs (subject to
// WallClock/StopFitness), and returns the best candidate admitted to the
// store along with the total number of evaluations consumed. Each run
// evaluates through its own copy of prob (its own evaluation counter), so
// the scheduled budget applies to each run separately.
func (cr *CoordinatedRetry) Minimize(prob *Problem, optimizer Optimizer, bounds Bounds, numRetries int, baseSeed uint64) (Result, error) {
	settings := cr.Settings.withDefaults()
	store := NewStore(settings.Store, bounds)
	kMin := int(math.Ceil(float64(store.settings.Capacity) / 5))
	budget := newBudgetSchedule(settings.MaxEvalsInit, settings.MaxEvalsCap, numRetries)

	scale := bounds.Scale()
	var meanScale float64
	for _, v := range scale {
		meanScale += v
	}
	meanScale /= float64(len(scale))

	start := time.Now()
	var attempted int64
	sem := semaphore.NewWeighted(int64(settings.Workers))
	var wg sync.WaitGroup
	var totalEvals int64
	var stop int32

	var logMu sync.Mutex
	lastLog := start

	for i := 0; i < numRetries; i++ {
		if atomic.LoadInt32(&stop) != 0 {
			break
		}
		if settings.WallClock > 0 && time.Since(start) >= settings.WallClock {
			break
		}
		if _, bestF := store.Best(); bestF <= settings.StopFitness {
			break
		}
		if err := sem.Acquire(context.Background(), 1); err != nil {
			return Result{}, err
		}
		atomic.AddInt64(&attempted, 1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			seed := baseSeed + uint64(i)
			r := newRNG(seed)

			var x0 []float64
			var sigma0 float64
			var parentA, parentB []float64

			if store.Len() < kMin {
				x0 = r.UniformInBounds(bounds)
				sigma0 = 0.3 * meanScale
			} else {
				a, b, ok := store.SelectParents(r)
				if !ok {
					x0 = r.UniformInBounds(bounds)
					sigma0 = 0.3 * meanScale
				} else {
					x0 = make([]float64, bounds.Dim())
					var meanAbsDiff float64
					for j := range x0 {
						u := r.Uniform(-0.1, 1.1)
						x0[j] = a.X[j] + u*(b.X[j]-a.X[j])
						meanAbsDiff += math.Abs(a.X[j] - b.X[j])
					}
					meanAbsDiff /= float64(bounds.Dim())
					sigma0 = clamp(0.5*meanAbsDiff, 1e-6*meanScale, meanScale)
					parentA, parentB = a.X, b.X
				}
			}

			maxEvals := budget.next()
			runProb := &Problem{Func: prob.Func, Bounds: prob.Bounds, Timeout: prob.Timeout, Safety: prob.Safety}
			res, err := optimizer.Minimize(runProb, x0, sigma0, maxEvals, seed)
			atomic.AddInt64(&totalEvals, int64(res.Evals))
			if err != nil || res.Status == StopFitnessInvalid {
				return
			}
			store.Admit(res.X, res.F)
			if parentA != nil {
				store.CreditParents(parentA, parentB)
			}
			if res.F <= settings.StopFitness {
				atomic.StoreInt32(&stop, 1)
			}

			if settings.LogInterval > 0 {
				logMu.Lock()
				if time.Since(lastLog) >= settings.LogInterval {
					lastLog = time.Now()
					emitAdvancedSummary(settings, store, int(atomic.LoadInt64(&attempted)), int(atomic.LoadInt64(&totalEvals)), start)
				}
				logMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if settings.Logger != nil {
		emitAdvancedSummary(settings, store, int(atomic.LoadInt64(&attempted)), int(atomic.LoadInt64(&totalEvals)), start)
	}

	x, f := store.Best()
	return Result{X: x, F: f, Evals: int(atomic.LoadInt64(&totalEvals)), Status: NotTerminated, Runtime: time.Since(start)}, nil
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// emitAdvancedSummary emits a Summary describing the shared store's current
// state (worst_store_f/store_size in place of mean/std, since the store's
// entries are the population here, not a flat list of independent runs).
func emitAdvancedSummary(settings AdvancedRetrySettings, store *Store, retries, totalEvals int, start time.Time) {
	if settings.Logger == nil {
		return
	}
	entries := store.Snapshot()
	fs := make([]float64, len(entries))
	for i, e := range entries {
		fs[i] = e.F
	}
	sort.Float64s(fs)
	top := fs
	if len(top) > 20 {
		top = top[:20]
	}
	var worst float64
	if len(fs) > 0 {
		worst = fs[len(fs)-1]
	}
	bestX, bestF := store.Best()

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
		WorstStoreF: worst,
		StoreSize:   len(entries),
		Top20F:      append([]float64(nil), top...),
		BestX:       bestX,
		Coordinated: true,
	})
}
