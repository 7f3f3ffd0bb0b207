package fcmaes

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CMAESSettings configures a CMAES run. A zero value uses sensible defaults
// for every field, mirroring gonum/optimize.Settings: exported fields, zero
// means "pick a default", defaults resolved lazily.
type CMAESSettings struct {
	// Population is the offspring population size λ. Zero selects
	// 4 + floor(3*ln(n)), with a floor of 5.
	Population int
	// StopFitness stops the run once the best fitness is at or below this
	// value. Defaults to -Inf (disabled).
	StopFitness float64
	// TolX stops the run once every coordinate standard deviation falls
	// below this value. Zero selects 1e-11.
	TolX float64
	// TolFun stops the run once the spread of recent best values falls
	// below this value. Zero selects 1e-12.
	TolFun float64
	// MaxIter caps the number of generations. Zero disables the cap.
	MaxIter int
	// Workers, if > 1, evaluates each generation's population across a
	// bounded pool of goroutines; order of returned values is always
	// reassembled to match submission order before Tell is called
	// internally. Workers <= 1 evaluates sequentially.
	Workers int
}

func (s CMAESSettings) withDefaults(n int) CMAESSettings {
	out := s
	if out.Population == 0 {
		out.Population = max(5, 4+int(3*math.Log(float64(n))))
	} else if out.Population < 0 {
		panic(errNonpositivePop)
	}
	if out.TolX == 0 {
		out.TolX = 1e-11
	}
	if out.TolFun == 0 {
		out.TolFun = 1e-12
	}
	if out.StopFitness == 0 {
		out.StopFitness = math.Inf(-1)
	}
	if out.Workers < 0 {
		panic(errNegativeWorkers)
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CMAES is the rank-mu + rank-one covariance-matrix-adaptation evolution
// strategy (Hansen & Ostermeier). It exposes the ask/tell contract directly
// (Ask/Tell) and a Minimize convenience driver. The algorithm shape (weights,
// cc/cs/c1/cmu/ds constants, CSA step-size rule) is carried over from
// gonum/optimize's CmaEsChol and pa-m-optimize's bounded variant, generalized
// from a Cholesky factor of C to an explicit eigendecomposition (B, D) cache
// so the principal axes and their lengths are available directly for
// sampling and for the condition-number degeneracy check, rather than
// recovering them from a triangular factor on every use.
type CMAES struct {
	Settings CMAESSettings

	n   int
	pop int
	mu  int

	bounds Bounds

	weights           []float64
	muEff             float64
	cc, cs, c1, cmu   float64
	ds                float64
	eChi              float64
	eigenEvery        int
	tolFunWindow      int

	mean  []float64
	sigma float64
	C     *mat.SymDense
	B     *mat.Dense
	D     []float64 // sqrt(eigenvalues) of C, i.e. principal-axis stddevs

	ps, pc []float64

	xs [][]float64 // current population, length pop
	zs [][]float64 // standard-normal draws backing xs, length pop

	generation     int
	degenRun       int
	recentBestF    []float64
	bestX          []float64
	bestF          float64

	rng *rng
}

var _ Optimizer = (*CMAES)(nil)

// NewCMAESRun initializes a CMAES run over prob's bounds, ready for Ask/Tell.
// x0 defaults to the bounds midpoint; sigma0 defaults to 0.3 times the mean
// half-width of the box, a conventional starting step size large enough to
// explore the box without immediately overshooting it.
func NewCMAESRun(settings CMAESSettings, bounds Bounds, x0 []float64, sigma0 float64, seed uint64) *CMAES {
	n := bounds.Dim()
	s := settings.withDefaults(n)

	c := &CMAES{
		Settings: s,
		n:        n,
		pop:      s.Population,
		bounds:   bounds,
		rng:      newRNG(seed),
	}
	c.mu = c.pop / 2
	c.weights = make([]float64, c.mu)
	for i := range c.weights {
		c.weights[i] = math.Log(float64(c.mu)+0.5) - math.Log(float64(i)+1)
	}
	floats.Scale(1/floats.Sum(c.weights), c.weights)
	var sumSq float64
	for _, w := range c.weights {
		sumSq += w * w
	}
	c.muEff = 1 / sumSq

	nf := float64(n)
	c.cc = (4 + c.muEff/nf) / (nf + 4 + 2*c.muEff/nf)
	c.cs = (c.muEff + 2) / (nf + c.muEff + 5)
	c.c1 = 2 / ((nf+1.3)*(nf+1.3) + c.muEff)
	c.cmu = math.Min(1-c.c1, 2*(c.muEff-2+1/c.muEff)/((nf+2)*(nf+2)+c.muEff))
	c.ds = 1 + 2*math.Max(0, math.Sqrt((c.muEff-1)/(nf+1))-1) + c.cs
	c.eChi = math.Sqrt(nf) * (1 - 1.0/(4*nf) + 1/(21*nf*nf))
	c.eigenEvery = max(1, n/10)
	c.tolFunWindow = 10 + int(math.Ceil(30*nf/float64(c.pop)))

	c.mean = make([]float64, n)
	if x0 != nil {
		copy(c.mean, x0)
	} else {
		copy(c.mean, bounds.Midpoint())
	}
	c.sigma = sigma0
	if c.sigma <= 0 {
		scale := bounds.Scale()
		c.sigma = 0.3 * floats.Sum(scale) / float64(n)
	}

	c.resetCovariance()

	c.ps = make([]float64, n)
	c.pc = make([]float64, n)
	c.xs = make([][]float64, c.pop)
	c.zs = make([][]float64, c.pop)
	for i := range c.xs {
		c.xs[i] = make([]float64, n)
		c.zs[i] = make([]float64, n)
	}
	c.bestX = resize(nil, n)
	c.bestF = math.Inf(1)
	return c
}

// resetCovariance sets C to the identity and refreshes the eigendecomposition
// cache. Used both at initialization and to recover from numerical
// degeneracy: restarting the search distribution from an isotropic C and
// letting sigma carry the accumulated scale is cheaper and more robust than
// trying to repair a non-positive-definite matrix in place.
func (c *CMAES) resetCovariance() {
	c.C = mat.NewSymDense(c.n, nil)
	for i := 0; i < c.n; i++ {
		c.C.SetSym(i, i, 1)
	}
	c.B = mat.NewDense(c.n, c.n, nil)
	for i := 0; i < c.n; i++ {
		c.B.Set(i, i, 1)
	}
	c.D = make([]float64, c.n)
	for i := range c.D {
		c.D[i] = 1
	}
}

// updateEigen recomputes the (B, D) cache from C. On failure (non-PSD C,
// NaN eigenvalues) it returns false so the caller can reset the covariance
// and recover; the caller tracks consecutive failures and escalates to
// StopCondition once recovery keeps failing, since a search distribution
// that can't hold a valid covariance across several resets has nothing left
// to adapt.
func (c *CMAES) updateEigen() bool {
	var eig mat.EigenSym
	ok := eig.Factorize(c.C, true)
	if !ok {
		return false
	}
	values := eig.Values(nil)
	for _, v := range values {
		if math.IsNaN(v) || v <= 0 {
			return false
		}
	}
	var vecs mat.Dense
	vecs.EigenvectorsSym(&eig)
	c.B = &vecs
	c.D = make([]float64, c.n)
	for i, v := range values {
		c.D[i] = math.Sqrt(v)
	}
	return true
}

// conditionNumber returns (max(D)/min(D))^2, the condition number of C
// itself (D holds sqrt(eigenvalues) of C, so squaring the ratio undoes
// that). An ill-conditioned C means the search distribution has collapsed
// onto a lower-dimensional subspace and can no longer be trusted.
func (c *CMAES) conditionNumber() float64 {
	lo, hi := c.D[0], c.D[0]
	for _, d := range c.D {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	if lo <= 0 {
		return math.Inf(1)
	}
	return (hi / lo) * (hi / lo)
}

// Ask returns the lambda candidate points for the current generation,
// sampled as x_k = mean + sigma*B*diag(D)*z_k with z_k ~ N(0, I), repaired
// into bounds by reflection.
func (c *CMAES) Ask() [][]float64 {
	t := make([]float64, c.n)
	for k := 0; k < c.pop; k++ {
		c.rng.NormalVec(c.zs[k])
		for i := 0; i < c.n; i++ {
			t[i] = c.D[i] * c.zs[k][i]
		}
		tv := mat.NewVecDense(c.n, t)
		yv := mat.NewVecDense(c.n, nil)
		yv.MulVec(c.B, tv)
		for i := 0; i < c.n; i++ {
			c.xs[k][i] = c.mean[i] + c.sigma*yv.AtVec(i)
		}
		c.bounds.Reflect(c.xs[k])
	}
	out := make([][]float64, c.pop)
	copy(out, c.xs)
	return out
}

// Tell accepts the lambda objective values corresponding to the last Ask
// call, updates the distribution parameters, and returns the resulting
// Status. fs must have length equal to the population size.
func (c *CMAES) Tell(fs []float64) Status {
	if len(fs) != c.pop {
		panic("fcmaes: Tell received wrong number of values")
	}
	finiteCount := 0
	for _, f := range fs {
		if !math.IsInf(f, 1) {
			finiteCount++
		}
	}
	if finiteCount == 0 {
		return StopFitnessInvalid
	}

	indexes := make([]int, c.pop)
	for i := range indexes {
		indexes[i] = i
	}
	sort.Slice(indexes, func(a, b int) bool { return fs[indexes[a]] < fs[indexes[b]] })

	if fs[indexes[0]] < c.bestF {
		c.bestF = fs[indexes[0]]
		c.bestX = resize(c.bestX, c.n)
		copy(c.bestX, c.xs[indexes[0]])
	}

	meanOld := make([]float64, c.n)
	copy(meanOld, c.mean)
	for i := range c.mean {
		c.mean[i] = 0
	}
	for i, w := range c.weights {
		floats.AddScaled(c.mean, w, c.xs[indexes[i]])
	}
	meanDiff := make([]float64, c.n)
	floats.SubTo(meanDiff, c.mean, meanOld)

	invSigmaInvSqrtC := c.invSqrtCTimes(meanDiff)
	floats.Scale(1-c.cs, c.ps)
	floats.AddScaled(c.ps, math.Sqrt(c.cs*(2-c.cs)*c.muEff)/c.sigma, invSigmaInvSqrtC)

	normPs := floats.Norm(c.ps, 2)
	hsig := 0.0
	denom := math.Sqrt(1-math.Pow(1-c.cs, 2*float64(c.generation+1))) * c.eChi
	threshold := (1.4 + 2/(float64(c.n)+1)) * denom
	if normPs < threshold || denom == 0 {
		hsig = 1
	}

	floats.Scale(1-c.cc, c.pc)
	if hsig == 1 {
		floats.AddScaled(c.pc, math.Sqrt(c.cc*(2-c.cc)*c.muEff)/c.sigma, meanDiff)
	}

	// C_{t+1} = (1-c1-cmu)*C + c1*(pc pc^T + (1-hsig)*cc*(2-cc)*C) + cmu*sum w_i y_i y_i^T
	scaleOld := 1 - c.c1 - c.cmu + c.c1*(1-hsig)*c.cc*(2-c.cc)
	c.C.ScaleSym(scaleOld, c.C)
	c.C.SymRankOne(c.C, c.c1, mat.NewVecDense(c.n, c.pc))
	y := make([]float64, c.n)
	for i, w := range c.weights {
		floats.SubTo(y, c.xs[indexes[i]], meanOld)
		floats.Scale(1/c.sigma, y)
		c.C.SymRankOne(c.C, c.cmu*w, mat.NewVecDense(c.n, append([]float64(nil), y...)))
	}

	c.sigma *= math.Exp((c.cs / c.ds) * (normPs/c.eChi - 1))

	c.generation++
	if c.generation%c.eigenEvery == 0 || c.generation == 1 {
		if !c.updateEigen() {
			c.degenRun++
			c.resetCovariance()
			c.sigma = math.Max(c.sigma, 1e-10)
			if c.degenRun >= 5 {
				return StopCondition
			}
		} else {
			c.degenRun = 0
		}
	}

	c.recentBestF = append(c.recentBestF, fs[indexes[0]])
	if len(c.recentBestF) > c.tolFunWindow {
		c.recentBestF = c.recentBestF[len(c.recentBestF)-c.tolFunWindow:]
	}

	return c.checkStop()
}

// invSqrtCTimes computes C^{-1/2} * v using the cached eigendecomposition:
// C^{-1/2} = B * diag(1/D) * B^T.
func (c *CMAES) invSqrtCTimes(v []float64) []float64 {
	vv := mat.NewVecDense(c.n, append([]float64(nil), v...))
	var bt mat.Dense
	bt.CloneFrom(c.B.T())
	tmp := mat.NewVecDense(c.n, nil)
	tmp.MulVec(&bt, vv)
	for i := 0; i < c.n; i++ {
		tmp.SetVec(i, tmp.AtVec(i)/c.D[i])
	}
	out := mat.NewVecDense(c.n, nil)
	out.MulVec(c.B, tmp)
	res := make([]float64, c.n)
	for i := 0; i < c.n; i++ {
		res[i] = out.AtVec(i)
	}
	return res
}

// checkStop evaluates the convergence criteria that aren't already returned
// eagerly inside Tell (StopFitnessInvalid, StopCondition).
func (c *CMAES) checkStop() Status {
	if c.bestF <= c.Settings.StopFitness {
		return StopFitness
	}
	if c.conditionNumber() > 1e14 {
		return StopCondition
	}
	if len(c.recentBestF) >= c.tolFunWindow {
		if floats.Max(c.recentBestF)-floats.Min(c.recentBestF) < c.Settings.TolFun {
			return StopTolFun
		}
	}
	allSmall := true
	for i := 0; i < c.n; i++ {
		if c.sigma*c.coordStd(i) >= c.Settings.TolX {
			allSmall = false
			break
		}
	}
	if allSmall {
		return StopTolX
	}
	if c.Settings.MaxIter > 0 && c.generation >= c.Settings.MaxIter {
		return StopMaxIter
	}
	return NotTerminated
}

// coordStd returns sqrt(C_ii), the marginal standard deviation of
// coordinate i under the current covariance (before scaling by sigma).
func (c *CMAES) coordStd(i int) float64 {
	v := c.C.At(i, i)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Minimize drives Ask/Tell to a terminal Status against prob, optionally
// evaluating each generation's population across Settings.Workers
// goroutines. Evaluation results are always reassembled into submission
// order before Tell is invoked, since Tell's recombination weights are
// defined over the rank order of a single generation, not over whichever
// goroutine happens to finish first.
func (c *CMAES) Minimize(prob *Problem, x0 []float64, sigma0 float64, maxEvals int, rngSeed uint64) (Result, error) {
	if maxEvals <= 0 {
		x := x0
		if x == nil {
			x = prob.Bounds.Midpoint()
		}
		f := prob.Evaluate(x)
		return Result{X: x, F: f, Evals: 1, Status: NotTerminated}, nil
	}
	run := NewCMAESRun(c.Settings, prob.Bounds, x0, sigma0, rngSeed)

	status := NotTerminated
	for status == NotTerminated {
		xs := run.Ask()
		if prob.Evaluations()+len(xs) > maxEvals && prob.Evaluations() > 0 {
			status = StopMaxEvals
			break
		}
		fs, err := evaluatePopulation(prob, xs, run.Settings.Workers)
		if err != nil {
			return Result{}, err
		}
		status = run.Tell(fs)
		if prob.Evaluations() >= maxEvals {
			if status == NotTerminated {
				status = StopMaxEvals
			}
			break
		}
	}
	return Result{X: run.bestX, F: run.bestF, Evals: prob.Evaluations(), Status: status}, nil
}

// evaluatePopulation evaluates xs against prob, sequentially if workers <= 1
// and across a bounded pool of goroutines otherwise. The returned slice is
// always in submission order.
func evaluatePopulation(prob *Problem, xs [][]float64, workers int) ([]float64, error) {
	fs := make([]float64, len(xs))
	if workers <= 1 {
		for i, x := range xs {
			fs[i] = prob.Evaluate(x)
		}
		return fs, nil
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, ctx := errgroup.WithContext(context.Background())
	for i, x := range xs {
		i, x := i, x
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			fs[i] = prob.Evaluate(x)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fs, nil
}
