package fcmaes

import (
	"math"
	"sort"
)

// DESettings configures a DifferentialEvolution run. A zero value selects
// a sensible default for every field.
type DESettings struct {
	// Population is popsize. Zero selects max(5*n, 40).
	Population int
	// FMin, FMax bound the per-offspring scale factor F, sampled uniformly
	// from [FMin, FMax] for every trial. Zero selects [0.5, 1.0].
	FMin, FMax float64
	// CRMin, CRMax bound the per-offspring crossover rate CR. Zero selects
	// [0.1, 0.9].
	CRMin, CRMax float64
	// PBestFraction selects pbest uniformly from the top
	// ceil(PBestFraction*popsize) individuals. Zero selects 0.3.
	PBestFraction float64
	// AgeMax is the age at which an individual is reinitialized with
	// probability 1 (probability age/AgeMax otherwise). Zero selects
	// popsize.
	AgeMax int
	// AlphaMin, AlphaMax bound the temporal-locality extrapolation factor
	// alpha, sampled per improved trial. Zero selects [1.0, 1.5].
	AlphaMin, AlphaMax float64
	// StopFitness stops the run once the best fitness is at or below this
	// value. Defaults to -Inf (disabled).
	StopFitness float64
	// TolFun stops the run once the spread of recent best-of-generation
	// values falls below this value over a window of 10*popsize
	// generations. Zero selects 1e-12.
	TolFun float64
	// MaxIter caps the number of generations (popsize evaluations each,
	// roughly). Zero disables the cap.
	MaxIter int
}

func (s DESettings) withDefaults(n int) DESettings {
	out := s
	if out.Population == 0 {
		out.Population = max(5*n, 40)
	} else if out.Population < 0 {
		panic(errNonpositivePop)
	}
	if out.FMin == 0 && out.FMax == 0 {
		out.FMin, out.FMax = 0.5, 1.0
	}
	if out.CRMin == 0 && out.CRMax == 0 {
		out.CRMin, out.CRMax = 0.1, 0.9
	}
	if out.PBestFraction == 0 {
		out.PBestFraction = 0.3
	}
	if out.AgeMax == 0 {
		out.AgeMax = out.Population
	}
	if out.AlphaMin == 0 && out.AlphaMax == 0 {
		out.AlphaMin, out.AlphaMax = 1.0, 1.5
	}
	if out.StopFitness == 0 {
		out.StopFitness = math.Inf(-1)
	}
	if out.TolFun == 0 {
		out.TolFun = 1e-12
	}
	return out
}

// individual is one member of the DE population: a candidate plus its age
// (generations since last improvement), tracked so stagnant individuals can
// be reinitialized instead of wasting further trials around a dead end.
type individual struct {
	x   []float64
	f   float64
	age int
}

// DifferentialEvolution implements DE/current-to-pbest/1/bin with temporal
// locality and age-based stochastic reinitialization. It shares its
// settings/Optimizer shape with CMAES (cmaes.go), generalized from CMA-ES's
// resampled-every-generation population to DE's persistent,
// individually-aged population. It exposes Ask and Minimize; there is no
// Tell, so generations are evaluated and advanced only inside Minimize.
type DifferentialEvolution struct {
	Settings DESettings

	n      int
	bounds Bounds
	pop    []individual
	gen    int
	rng    *rng

	bestX []float64
	bestF float64

	recentBestF []float64
}

var _ Optimizer = (*DifferentialEvolution)(nil)

// NewDERun initializes a DE population uniformly at random in bounds,
// except individual 0 which starts at x0 if provided.
func NewDERun(settings DESettings, bounds Bounds, x0 []float64, seed uint64) *DifferentialEvolution {
	n := bounds.Dim()
	s := settings.withDefaults(n)
	d := &DifferentialEvolution{
		Settings: s,
		n:        n,
		bounds:   bounds,
		rng:      newRNG(seed),
		bestF:    math.Inf(1),
	}
	d.pop = make([]individual, s.Population)
	for i := range d.pop {
		d.pop[i].x = make([]float64, n)
		d.rng.fillUniformInBounds(d.pop[i].x, bounds)
	}
	if x0 != nil {
		copy(d.pop[0].x, x0)
	}
	return d
}

// Ask returns the popsize current population members. There is no matching
// Tell: the population is evaluated and advanced only by Minimize.
func (d *DifferentialEvolution) Ask() [][]float64 {
	out := make([][]float64, len(d.pop))
	for i := range d.pop {
		out[i] = d.pop[i].x
	}
	return out
}

// pbestIndices returns the indices, sorted by fitness ascending, of the top
// ceil(PBestFraction*popsize) individuals.
func (d *DifferentialEvolution) pbestIndices() []int {
	idx := make([]int, len(d.pop))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return d.pop[idx[a]].f < d.pop[idx[b]].f })
	top := int(math.Ceil(d.Settings.PBestFraction * float64(len(d.pop))))
	if top < 1 {
		top = 1
	}
	return idx[:top]
}

// trial constructs one current-to-pbest/1/bin offspring for individual i.
func (d *DifferentialEvolution) trial(i int, pbestIdx []int) (u []float64, f, cr float64) {
	f = d.rng.Uniform(d.Settings.FMin, d.Settings.FMax)
	cr = d.rng.Uniform(d.Settings.CRMin, d.Settings.CRMax)
	pbest := pbestIdx[d.rng.Intn(len(pbestIdx))]
	others := d.rng.distinctIndices(len(d.pop), 2, i, pbest)
	r1, r2 := others[0], others[1]

	u = make([]float64, d.n)
	xi := d.pop[i].x
	jrand := d.rng.Intn(d.n)
	for j := 0; j < d.n; j++ {
		if j == jrand || d.rng.Float64() < cr {
			u[j] = xi[j] + f*(d.pop[pbest].x[j]-xi[j]) + f*(d.pop[r1].x[j]-d.pop[r2].x[j])
			if u[j] < d.bounds.Lo[j] || u[j] > d.bounds.Hi[j] {
				u[j] = d.rng.Uniform(d.bounds.Lo[j], d.bounds.Hi[j])
			}
		} else {
			u[j] = xi[j]
		}
	}
	return u, f, cr
}

// Minimize drives generations of DE against prob until a terminal Status.
func (d *DifferentialEvolution) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	if maxEvals <= 0 {
		x := x0
		if x == nil {
			x = prob.Bounds.Midpoint()
		}
		f := prob.Evaluate(x)
		return Result{X: x, F: f, Evals: 1, Status: NotTerminated}, nil
	}
	run := NewDERun(d.Settings, prob.Bounds, x0, rngSeed)

	for i := range run.pop {
		run.pop[i].f = prob.Evaluate(run.pop[i].x)
		if run.pop[i].f < run.bestF {
			run.bestF = run.pop[i].f
			run.bestX = append(run.bestX[:0], run.pop[i].x...)
		}
		if prob.Evaluations() >= maxEvals {
			return Result{X: run.bestX, F: run.bestF, Evals: prob.Evaluations(), Status: StopMaxEvals}, nil
		}
	}

	status := NotTerminated
	for status == NotTerminated {
		status = run.generation_(prob, maxEvals)
	}
	return Result{X: run.bestX, F: run.bestF, Evals: prob.Evaluations(), Status: status}, nil
}

// generation_ runs one pass over the population, producing and admitting one
// trial (plus an optional temporal-locality trial) per individual, and
// returns the resulting Status. It advances the gen counter; it is an
// internal step function, not part of the Optimizer contract.
func (d *DifferentialEvolution) generation_(prob *Problem, maxEvals int) Status {
	pbestIdx := d.pbestIndices()
	finiteAny := false

	for i := range d.pop {
		if prob.Evaluations() >= maxEvals {
			return StopMaxEvals
		}
		u, f, _ := d.trial(i, pbestIdx)
		fu := prob.Evaluate(u)
		if !math.IsInf(fu, 1) {
			finiteAny = true
		}

		best := u
		bestF := fu
		if fu < d.pop[i].f && prob.Evaluations() < maxEvals {
			// Temporal locality: extrapolate along the successful
			// improvement direction and keep the better of the two.
			alpha := d.rng.Uniform(d.Settings.AlphaMin, d.Settings.AlphaMax)
			u2 := make([]float64, d.n)
			for j := range u2 {
				u2[j] = d.pop[i].x[j] + alpha*(u[j]-d.pop[i].x[j])
			}
			d.bounds.Reflect(u2)
			fu2 := prob.Evaluate(u2)
			if !math.IsInf(fu2, 1) {
				finiteAny = true
			}
			if fu2 < bestF {
				best, bestF = u2, fu2
			}
		}

		if bestF < d.pop[i].f {
			d.pop[i].x = best
			d.pop[i].f = bestF
			d.pop[i].age = 0
			if bestF < d.bestF {
				d.bestF = bestF
				d.bestX = append(d.bestX[:0], best...)
			}
		} else {
			d.pop[i].age++
			reinitProb := float64(d.pop[i].age) / float64(d.Settings.AgeMax)
			if d.rng.Float64() < reinitProb {
				d.rng.fillUniformInBounds(d.pop[i].x, d.bounds)
				d.pop[i].age = 0
				if prob.Evaluations() < maxEvals {
					d.pop[i].f = prob.Evaluate(d.pop[i].x)
					if d.pop[i].f < d.bestF {
						d.bestF = d.pop[i].f
						d.bestX = append(d.bestX[:0], d.pop[i].x...)
					}
				}
			}
		}
	}

	if !finiteAny {
		return StopFitnessInvalid
	}

	d.gen++
	d.recentBestF = append(d.recentBestF, d.bestF)
	window := 10 * len(d.pop)
	if len(d.recentBestF) > window {
		d.recentBestF = d.recentBestF[len(d.recentBestF)-window:]
	}

	if d.bestF <= d.Settings.StopFitness {
		return StopFitness
	}
	if len(d.recentBestF) >= window {
		spread := 0.0
		for _, v := range d.recentBestF {
			if diff := math.Abs(v - d.bestF); diff > spread {
				spread = diff
			}
		}
		if spread < d.Settings.TolFun {
			return StopTolFun
		}
	}
	if d.Settings.MaxIter > 0 && d.gen >= d.Settings.MaxIter {
		return StopMaxIter
	}
	if prob.Evaluations() >= maxEvals {
		return StopMaxEvals
	}
	return NotTerminated
}
