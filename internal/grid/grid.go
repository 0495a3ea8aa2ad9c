package grid

import (
	"fmt"
	"iter"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Grid is a regular lattice over the box [low, high], with m[i] equal segments
// along dimension i, optionally restricted by a Constraint.
type Grid struct {
	low, high Vector
	m         []int
	c         Constraint

	once       sync.Once
	lattice    Constraint
	latticeErr error
}

// NewGrid builds a grid over [low, high] with the given segment counts. The
// constraint may be nil. All dimension and validity checks happen here.
func NewGrid(low, high Vector, segments []int, c Constraint) (*Grid, error) {
	n := low.Dim()
	if n == 0 {
		return nil, fmt.Errorf("%w: grid needs at least one dimension", ErrDimensionMismatch)
	}
	if high.Dim() != n || len(segments) != n {
		return nil, fmt.Errorf("%w: low has %d, high has %d, segments has %d dimensions",
			ErrDimensionMismatch, n, high.Dim(), len(segments))
	}
	for i := 0; i < n; i++ {
		if segments[i] < 1 {
			return nil, fmt.Errorf("%w: segments[%d]=%d, need at least 1", ErrInvalidGrid, i, segments[i])
		}
		if !(low.x[i] < high.x[i]) {
			return nil, fmt.Errorf("%w: empty range [%g, %g] in dimension %d", ErrInvalidGrid, low.x[i], high.x[i], i)
		}
	}
	if c != nil {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if c.Arity() > n {
			return nil, fmt.Errorf("%w: constraint reads %d dimensions, grid has %d", ErrDimensionMismatch, c.Arity(), n)
		}
	}
	return &Grid{
		low:  low,
		high: high,
		m:    append([]int(nil), segments...),
		c:    c,
	}, nil
}

// Cube returns the grid over [0,1]^n with the same number of segments on every axis.
func Cube(n, segments int, c Constraint) (*Grid, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cube needs at least one dimension", ErrDimensionMismatch)
	}
	m := make([]int, n)
	for i := range m {
		m[i] = segments
	}
	return NewGrid(Zero(n), Ones(n), m, c)
}

// Dim returns the number of dimensions.
func (g *Grid) Dim() int { return len(g.m) }

// Low returns the lower corner.
func (g *Grid) Low() Vector { return g.low }

// High returns the upper corner.
func (g *Grid) High() Vector { return g.high }

// Segments returns a copy of the per-dimension segment counts.
func (g *Grid) Segments() []int { return append([]int(nil), g.m...) }

// Constraint returns the logical constraint, or nil.
func (g *Grid) Constraint() Constraint { return g.c }

// CellWidth is the width of one cell along dimension i.
func (g *Grid) CellWidth(i int) float64 {
	return (g.high.x[i] - g.low.x[i]) / float64(g.m[i])
}

// Size is the number of lattice points before the constraint is applied.
func (g *Grid) Size() int {
	size := 1
	for _, m := range g.m {
		size *= m + 1
	}
	return size
}

// LatticeConstraint returns the grid's constraint rewritten over lattice
// coordinates. It is derived once, on first use, and is nil for an
// unconstrained grid.
func (g *Grid) LatticeConstraint() (Constraint, error) {
	g.once.Do(func() {
		if g.c == nil {
			return
		}
		g.lattice, g.latticeErr = g.c.ToLatticeSpace(g)
	})
	return g.lattice, g.latticeErr
}

// PointAt maps lattice coordinates to the real point they index.
func (g *Grid) PointAt(p []int) (Vector, error) {
	if len(p) != len(g.m) {
		return Vector{}, fmt.Errorf("%w: lattice point has %d coordinates, grid has %d", ErrDimensionMismatch, len(p), len(g.m))
	}
	for i, v := range p {
		if v < 0 || v > g.m[i] {
			return Vector{}, fmt.Errorf("%w: p[%d]=%d outside [0, %d]", ErrOutOfRange, i, v, g.m[i])
		}
	}
	return g.pointAt(p), nil
}

func (g *Grid) pointAt(p []int) Vector {
	x := make([]float64, len(p))
	for i, v := range p {
		switch v {
		case 0:
			x[i] = g.low.x[i]
		case g.m[i]:
			x[i] = g.high.x[i]
		default:
			x[i] = g.low.x[i] + (g.high.x[i]-g.low.x[i])*float64(v)/float64(g.m[i])
		}
	}
	return Vector{x: x}
}

// Enumerate returns the admissible lattice points together with their real
// coordinates, as a mixed-radix count with dimension 0 varying fastest. Every
// call returns an independent sequence; the yielded slices are owned by the
// caller.
func (g *Grid) Enumerate() (iter.Seq2[[]int, Vector], error) {
	lc, err := g.LatticeConstraint()
	if err != nil {
		return nil, err
	}
	n := len(g.m)
	return func(yield func([]int, Vector) bool) {
		p := make([]int, n)
		for {
			if lc == nil || lc.HoldsLattice(p) {
				if !yield(append([]int(nil), p...), g.pointAt(p)) {
					return
				}
			} else {
				// Coefficients are non-negative, so the rest of this row fails too.
				p[0] = g.m[0]
			}
			i := 0
			for ; i < n; i++ {
				p[i]++
				if p[i] <= g.m[i] {
					break
				}
				p[i] = 0
			}
			if i == n {
				return
			}
		}
	}, nil
}

// Index linearizes a lattice point in the same mixed-radix order Enumerate uses.
func (g *Grid) Index(p []int) (int, error) {
	if len(p) != len(g.m) {
		return 0, fmt.Errorf("%w: lattice point has %d coordinates, grid has %d", ErrDimensionMismatch, len(p), len(g.m))
	}
	idx, stride := 0, 1
	for i, v := range p {
		if v < 0 || v > g.m[i] {
			return 0, fmt.Errorf("%w: p[%d]=%d outside [0, %d]", ErrOutOfRange, i, v, g.m[i])
		}
		idx += v * stride
		stride *= g.m[i] + 1
	}
	return idx, nil
}

// Admissible returns the linear indices of all admissible lattice points.
func (g *Grid) Admissible() (*roaring.Bitmap, error) {
	if g.Size() > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d lattice points exceed bitmap range", ErrOutOfRange, g.Size())
	}
	points, err := g.Enumerate()
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	for p := range points {
		idx, err := g.Index(p)
		if err != nil {
			return nil, err
		}
		bm.Add(uint32(idx))
	}
	return bm, nil
}

// Count returns the number of admissible lattice points. Lattices that fit
// the bitmap range are counted through Admissible.
func (g *Grid) Count() (int, error) {
	if g.Size() <= math.MaxUint32 {
		bm, err := g.Admissible()
		if err != nil {
			return 0, err
		}
		return int(bm.GetCardinality()), nil
	}
	points, err := g.Enumerate()
	if err != nil {
		return 0, err
	}
	count := 0
	for range points {
		count++
	}
	return count, nil
}

// RefineAround returns a finer grid covering radius cells of g on each side of
// center, each cell split into subdivisions segments. Along any dimension
// where that window would leave g's box, the new boundary is clipped to g's
// boundary instead. The result carries g's constraint.
func (g *Grid) RefineAround(center Vector, subdivisions, radius int) (*Grid, error) {
	n := len(g.m)
	if center.Dim() != n {
		return nil, fmt.Errorf("%w: center has %d dimensions, grid has %d", ErrDimensionMismatch, center.Dim(), n)
	}
	if subdivisions < 1 || radius < 1 {
		return nil, fmt.Errorf("%w: subdivisions=%d radius=%d, both must be at least 1", ErrInvalidGrid, subdivisions, radius)
	}

	low := make([]float64, n)
	high := make([]float64, n)
	m := make([]int, n)
	for i := 0; i < n; i++ {
		x := center.x[i]
		if x < g.low.x[i] || x > g.high.x[i] {
			return nil, fmt.Errorf("%w: center[%d]=%g outside [%g, %g]", ErrOutOfRange, i, x, g.low.x[i], g.high.x[i])
		}
		box := g.CellWidth(i)
		window := box * float64(radius)

		var sides [2]int
		for k, boundary := range [2]float64{g.low.x[i], g.high.x[i]} {
			sign := float64(2*k - 1)
			edge := x + sign*window
			if math.Abs(x-boundary) < window {
				edge = boundary
			}
			// Keep the edge inside the parent box despite rounding in x +/- window.
			edge = math.Max(g.low.x[i], math.Min(g.high.x[i], edge))

			md := int(math.Round(math.Abs(x-edge) * float64(subdivisions) / box))
			if 2*md >= (2*radius-1)*subdivisions {
				md = radius * subdivisions
			}
			sides[k] = md
			if k == 0 {
				low[i] = edge
			} else {
				high[i] = edge
			}
		}
		m[i] = sides[0] + sides[1]
		if m[i] < 1 || !(low[i] < high[i]) {
			return nil, fmt.Errorf("%w: refinement around %g collapses dimension %d", ErrInvalidGrid, x, i)
		}
	}
	return NewGrid(Vector{x: low}, Vector{x: high}, m, g.c)
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid{low=%s high=%s m=%v}", g.low, g.high, g.m)
}
