package fcmaes

import "math"

// HarrisHawksSettings configures HarrisHawks. Zero values select the
// defaults below.
type HarrisHawksSettings struct {
	// Population is the number of hawks. Zero selects max(5*n, 30).
	Population int
	// StopFitness stops the run once the best fitness is at or below this
	// value. Defaults to -Inf (disabled).
	StopFitness float64
}

func (s HarrisHawksSettings) withDefaults(n int) HarrisHawksSettings {
	out := s
	if out.Population == 0 {
		out.Population = max(5*n, 30)
	} else if out.Population < 0 {
		panic(errNonpositivePop)
	}
	if out.StopFitness == 0 {
		out.StopFitness = math.Inf(-1)
	}
	return out
}

// HarrisHawks is a compact Harris Hawks Optimization adapter (Heidari et
// al. 2019): a population of "hawks" alternates exploration (perching
// randomly relative to the current best or to the flock mean) and
// exploitation (closing in on the current best) as a shared
// "escaping energy" decays over the run. It conforms to the Optimizer
// contract exactly like DualAnnealing: self-contained per call, no shared
// state, safe to run from any worker.
type HarrisHawks struct {
	Settings HarrisHawksSettings
}

var _ Optimizer = (*HarrisHawks)(nil)

// Minimize runs Harris Hawks Optimization. sigma0 is accepted for contract
// uniformity but ignored, since HHO has no step-size concept to seed it
// with.
func (hh *HarrisHawks) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	bounds := prob.Bounds
	n := bounds.Dim()
	settings := hh.Settings.withDefaults(n)
	r := newRNG(rngSeed)

	if maxEvals <= 0 {
		x := x0
		if x == nil {
			x = bounds.Midpoint()
		}
		f := prob.Evaluate(x)
		return Result{X: x, F: f, Evals: 1, Status: NotTerminated}, nil
	}

	pop := settings.Population
	hawks := make([][]float64, pop)
	fs := make([]float64, pop)
	for i := range hawks {
		hawks[i] = r.UniformInBounds(bounds)
	}
	if x0 != nil {
		copy(hawks[0], x0)
	}
	for i := range hawks {
		fs[i] = prob.Evaluate(hawks[i])
	}

	bestIdx := argmin(fs)
	bestX := append([]float64(nil), hawks[bestIdx]...)
	bestF := fs[bestIdx]

	status := NotTerminated
	maxIter := max(1, maxEvals/pop)
	for it := 0; it < maxIter; it++ {
		energy0 := 2*r.Float64() - 1 // in [-1, 1]
		for i := range hawks {
			if prob.Evaluations() >= maxEvals {
				status = StopMaxEvals
				break
			}
			jumpStrength := 2 * (1 - r.Float64())
			escaping := 2 * energy0 * (1 - float64(it)/float64(maxIter))

			var mean []float64
			if math.Abs(escaping) >= 1 {
				mean = flockMean(hawks)
			}

			next := make([]float64, n)
			switch {
			case math.Abs(escaping) >= 1:
				// Exploration: perch randomly relative to a random hawk or
				// the flock mean.
				if r.Float64() < 0.5 {
					other := hawks[r.Intn(pop)]
					for j := range next {
						next[j] = other[j] - r.Float64()*math.Abs(other[j]-2*r.Float64()*hawks[i][j])
					}
				} else {
					for j := range next {
						next[j] = (bestX[j] - mean[j]) - r.Float64()*(bounds.Lo[j]+r.Float64()*(bounds.Hi[j]-bounds.Lo[j]))
					}
				}
			default:
				// Exploitation: one update rule toward the current best,
				// scaled by the escaping energy and the jump strength; there
				// are no separate soft/hard besiege branches.
				for j := range next {
					next[j] = bestX[j] - escaping*math.Abs(jumpStrength*bestX[j]-hawks[i][j])
				}
			}
			bounds.Reflect(next)
			fn := prob.Evaluate(next)
			if fn < fs[i] {
				hawks[i] = next
				fs[i] = fn
				if fn < bestF {
					bestF = fn
					bestX = append(bestX[:0], next...)
				}
			}
		}
		if status != NotTerminated {
			break
		}
		if bestF <= settings.StopFitness {
			status = StopFitness
			break
		}
	}
	if status == NotTerminated {
		status = StopMaxIter
	}

	return Result{X: bestX, F: bestF, Evals: prob.Evaluations(), Status: status}, nil
}

// argmin returns the index of the smallest value in fs.
func argmin(fs []float64) int {
	best := 0
	for i, f := range fs {
		if f < fs[best] {
			best = i
		}
	}
	return best
}

// flockMean returns the coordinate-wise mean position of the population.
func flockMean(hawks [][]float64) []float64 {
	n := len(hawks[0])
	mean := make([]float64, n)
	for _, h := range hawks {
		for j, v := range h {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(hawks))
	}
	return mean
}
