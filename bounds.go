package fcmaes

import "math"

// Bounds is a hyperrectangle in R^n given by lo[i] < hi[i]. Bounds are
// immutable once a run starts; Midpoint and Scale compute a fresh slice from
// Lo and Hi on each call.
type Bounds struct {
	Lo, Hi []float64
}

// NewBounds validates and constructs a Bounds. It panics if lo and hi have
// mismatched or zero length, or if any lo[i] >= hi[i]: a malformed box is a
// configuration mistake, not something any algorithm here can recover from
// mid-run, so it is better caught immediately than silently tolerated.
func NewBounds(lo, hi []float64) Bounds {
	if len(lo) == 0 || len(lo) != len(hi) {
		panic(errBoundsMismatch)
	}
	for i := range lo {
		if !(lo[i] < hi[i]) {
			panic(errBoundsOrder)
		}
	}
	return Bounds{Lo: lo, Hi: hi}
}

// Dim returns the problem dimension.
func (b Bounds) Dim() int { return len(b.Lo) }

// Midpoint returns (lo+hi)/2.
func (b Bounds) Midpoint() []float64 {
	m := make([]float64, len(b.Lo))
	for i := range m {
		m[i] = 0.5 * (b.Lo[i] + b.Hi[i])
	}
	return m
}

// Scale returns (hi-lo)/2, the half-width of the box along each coordinate.
func (b Bounds) Scale() []float64 {
	s := make([]float64, len(b.Lo))
	for i := range s {
		s[i] = 0.5 * (b.Hi[i] - b.Lo[i])
	}
	return s
}

// Contains reports whether x lies within the closed box.
func (b Bounds) Contains(x []float64) bool {
	for i, v := range x {
		if v < b.Lo[i] || v > b.Hi[i] {
			return false
		}
	}
	return true
}

// Clamp hard-clips x in place to the box.
func (b Bounds) Clamp(x []float64) {
	for i := range x {
		if x[i] < b.Lo[i] {
			x[i] = b.Lo[i]
		} else if x[i] > b.Hi[i] {
			x[i] = b.Hi[i]
		}
	}
}

// Reflect repairs an out-of-bounds point in place by mirroring violating
// coordinates back into the box against the violated face. Reflection is
// applied to x directly (never to the underlying Gaussian draw that
// produced it), so a search distribution's own evolution-path statistics
// stay unbiased by the repair.
func (b Bounds) Reflect(x []float64) {
	for i, v := range x {
		lo, hi := b.Lo[i], b.Hi[i]
		width := hi - lo
		if width <= 0 {
			x[i] = lo
			continue
		}
		// Reflect v against whichever face it violates, repeatedly; each
		// reflection brings an overshoot about one box width closer. A
		// handful of reflections handles any realistic overshoot; a point
		// still outside after maxFolds reflections is clamped to the face it
		// lies beyond.
		const maxFolds = 64
		folds := 0
		for (v < lo || v > hi) && folds < maxFolds {
			if v < lo {
				v = 2*lo - v
			} else if v > hi {
				v = 2*hi - v
			}
			folds++
		}
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		x[i] = v
	}
}

// Normalize maps x into [-1, 1]^n using the box's midpoint and scale, so
// distances between points in differently-scaled coordinates become
// comparable (used by the retry store for deduplication).
func (b Bounds) Normalize(x []float64, mid, scale []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		s := scale[i]
		if s == 0 {
			s = 1
		}
		y[i] = (v - mid[i]) / s
	}
	return y
}

// euclidean returns the Euclidean distance between a and b.
func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
