package fcmaes

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// StoreEntry is one elite in the retry store: a candidate, its normalized
// selection value Y, the admission-order Generation, and Count (how many
// seeds have been produced from it).
type StoreEntry struct {
	X          []float64
	F          float64
	Y          float64
	Generation int
	Count      int
}

// StoreSettings configures a Store. Zero values select the defaults below.
type StoreSettings struct {
	// Capacity is K, the store's maximum size. Zero selects 500.
	Capacity int
	// DedupRadius is the normalized-distance threshold under which two
	// entries are considered the same basin. Zero selects 0.15*sqrt(n).
	DedupRadius float64
	// DedupTolerance bounds how close two same-basin entries' F must be
	// for the worse one to be dropped outright rather than kept as a
	// distinct (if nearby) elite. Zero selects 0.05*max(1, |f_nn|)
	// evaluated per comparison (see Admit).
	DedupTolerance float64
	// CountMax back-pressures an entry from being selected as a parent
	// once it has produced more than this many seeds. Zero selects 50.
	CountMax int
}

func (s StoreSettings) withDefaults(n int) StoreSettings {
	out := s
	if out.Capacity == 0 {
		out.Capacity = 500
	}
	if out.DedupRadius == 0 {
		out.DedupRadius = 0.15 * math.Sqrt(float64(n))
	}
	if out.CountMax == 0 {
		out.CountMax = 50
	}
	return out
}

// Store is the fixed-capacity, sorted, deduplicated collection of elite
// points that backs Coordinated Retry. All admission and parent-selection
// logic runs under a single mutex: the critical section (a full re-sort of
// the entries plus an O(K) dedup scan) is short compared to a run's
// wall-clock time, so a single lock is simpler and no less correct than
// finer-grained synchronization.
type Store struct {
	mu       sync.Mutex
	settings StoreSettings
	bounds   Bounds
	mid      []float64
	scale    []float64
	entries  []StoreEntry
	gen      int

	bestX []float64
	bestF float64
}

// NewStore constructs an empty Store over bounds.
func NewStore(settings StoreSettings, bounds Bounds) *Store {
	s := settings.withDefaults(bounds.Dim())
	return &Store{
		settings: s,
		bounds:   bounds,
		mid:      bounds.Midpoint(),
		scale:    bounds.Scale(),
		bestF:    math.Inf(1),
	}
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Best returns the best candidate admitted so far.
func (s *Store) Best() (x []float64, f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.bestX...), s.bestF
}

// Snapshot returns a copy of the current entries, sorted ascending by F.
func (s *Store) Snapshot() []StoreEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoreEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Admit discards non-finite f outright; merges x into the nearest
// same-basin neighbor if one exists within DedupRadius and DedupTolerance
// (keeping the better of the two, resetting its Count since it now
// represents a fresh candidate); otherwise inserts x as a new entry,
// evicting the worst entry on overflow. Merging on proximity rather than
// exact duplication keeps the store from filling up with near-identical
// points orbiting the same basin. Returns false only for a non-finite f;
// every finite f returns true, including one merged into a better neighbor
// without changing it and one evicted at once as the worst entry.
func (s *Store) Admit(x []float64, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if f < s.bestF {
		s.bestF = f
		s.bestX = append(s.bestX[:0], x...)
	}

	nx := s.bounds.Normalize(x, s.mid, s.scale)
	nnIdx := -1
	nnDist := math.Inf(1)
	for i, e := range s.entries {
		d := euclidean(nx, s.bounds.Normalize(e.X, s.mid, s.scale))
		if d < nnDist {
			nnDist = d
			nnIdx = i
		}
	}

	if nnIdx != -1 {
		tol := s.settings.DedupTolerance
		if tol == 0 {
			tol = 0.05 * math.Max(1, math.Abs(s.entries[nnIdx].F))
		}
		if nnDist < s.settings.DedupRadius && math.Abs(f-s.entries[nnIdx].F) < tol {
			if f < s.entries[nnIdx].F {
				s.entries[nnIdx].X = append([]float64(nil), x...)
				s.entries[nnIdx].F = f
				s.entries[nnIdx].Count = 0
				s.entries[nnIdx].Generation = s.gen
				s.gen++
				s.resort()
			}
			return true
		}
	}

	s.gen++
	s.entries = append(s.entries, StoreEntry{
		X:          append([]float64(nil), x...),
		F:          f,
		Generation: s.gen,
	})
	s.resort()
	if len(s.entries) > s.settings.Capacity {
		s.entries = s.entries[:s.settings.Capacity]
	}
	return true
}

// resort keeps entries sorted ascending by F and refreshes each entry's
// normalized Y selection value (rank position scaled to [0,1]).
func (s *Store) resort() {
	sort.Slice(s.entries, func(a, b int) bool { return s.entries[a].F < s.entries[b].F })
	n := len(s.entries)
	for i := range s.entries {
		if n <= 1 {
			s.entries[i].Y = 0
		} else {
			s.entries[i].Y = float64(i) / float64(n-1)
		}
	}
}

// CreditParents increments the Count of the entries nearest a and b in
// normalized space. Re-locating the parents by nearest neighbor rather than
// by identity keeps this working even if the entries it was selected from
// have since been merged or evicted.
func (s *Store) CreditParents(a, b []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range [][]float64{a, b} {
		if p == nil {
			continue
		}
		best := -1
		bestD := math.Inf(1)
		np := s.bounds.Normalize(p, s.mid, s.scale)
		for i, e := range s.entries {
			d := euclidean(np, s.bounds.Normalize(e.X, s.mid, s.scale))
			if d < bestD {
				bestD = d
				best = i
			}
		}
		if best != -1 {
			s.entries[best].Count++
		}
	}
}

// eligibleParents returns the indices of entries whose Count has not
// exceeded CountMax, i.e. those still eligible to seed a new run. Excluding
// overused entries keeps the store from converging every later run around
// the same handful of early elites.
func (s *Store) eligibleParents() []int {
	var out []int
	for i, e := range s.entries {
		if e.Count <= s.settings.CountMax {
			out = append(out, i)
		}
	}
	return out
}

// SelectParents picks two distinct entries with probability inversely
// proportional to rank (rank 1 = best), restricted to eligible (not
// back-pressured) entries, using r for randomness. Returns ok=false if
// fewer than two entries are eligible.
func (s *Store) SelectParents(r *rng) (a, b StoreEntry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eligible := s.eligibleParents()
	if len(eligible) < 2 {
		return StoreEntry{}, StoreEntry{}, false
	}
	weights := make([]float64, len(eligible))
	for i, idx := range eligible {
		weights[i] = 1 / float64(idx+2) // rank 1 (idx 0) gets the most mass
	}
	ia := int(distuv.NewCategorical(weights, r.src).Rand())
	weights[ia] = 0
	ib := int(distuv.NewCategorical(weights, r.src).Rand())
	return s.entries[eligible[ia]], s.entries[eligible[ib]], true
}
