package grid

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSparse(t *testing.T, ind []int, val []float64, b float64) *Sparse {
	t.Helper()
	s, err := NewSparse(ind, val, b)
	require.NoError(t, err)
	return s
}

func mustDense(t *testing.T, a []float64, b float64) *Dense {
	t.Helper()
	d, err := NewDense(a, b)
	require.NoError(t, err)
	return d
}

// testGrids covers cubes, shifted boxes and refined sub-grids.
func testGrids(t *testing.T) []*Grid {
	t.Helper()
	cube, err := Cube(3, 4, nil)
	require.NoError(t, err)
	shifted, err := NewGrid(MustVector(-0.5, 0.2, 1), MustVector(0.5, 0.9, 3), []int{5, 7, 3}, nil)
	require.NoError(t, err)
	refined, err := cube.RefineAround(MustVector(0.25, 0.5, 1), 3, 1)
	require.NoError(t, err)
	deeper, err := refined.RefineAround(MustVector(0.25, 0.5, 1), 3, 1)
	require.NoError(t, err)
	return []*Grid{cube, shifted, refined, deeper}
}

func allLatticePoints(g *Grid) [][]int {
	var out [][]int
	p := make([]int, g.Dim())
	for {
		out = append(out, append([]int(nil), p...))
		i := 0
		for ; i < len(p); i++ {
			p[i]++
			if p[i] <= g.m[i] {
				break
			}
			p[i] = 0
		}
		if i == len(p) {
			return out
		}
	}
}

func TestLatticeSpaceRoundTrip(t *testing.T) {
	constraints := map[string]Constraint{
		"dense simplex":  DenseSimplex(3),
		"dense weighted": mustDense(t, []float64{2, 0.5, 1}, 1.7),
		"dense partial":  mustDense(t, []float64{1, 1}, 0.75),
		"sparse simplex": mustSparse(t, []int{0, 2}, []float64{1, 1}, 1),
		"sparse bound":   mustSparse(t, []int{1}, []float64{3}, 2),
		"sparse wide":    mustSparse(t, []int{0, 1, 2}, []float64{1, 2, 0.25}, 2.5),
	}

	for name, c := range constraints {
		for gi, g := range testGrids(t) {
			lc, err := c.ToLatticeSpace(g)
			require.NoError(t, err, "%s on grid %d", name, gi)
			for _, p := range allLatticePoints(g) {
				x, err := g.PointAt(p)
				require.NoError(t, err)
				assert.Equal(t, c.Holds(x.Values()), lc.HoldsLattice(p),
					"%s on grid %d at %v (%s)", name, gi, p, x)
			}
		}
	}
}

// Boundaries pass exactly through one lattice point, on boxes from unit size
// up to 1e8, where rounding in the real and lattice sums differs most.
func TestLatticeSpaceRoundTripLargeBoxes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, scale := range []float64{1, 1e3, 1e6, 1e8} {
		for trial := 0; trial < 10; trial++ {
			low := []float64{scale * 4 * (rng.Float64() - 0.5), scale * 4 * (rng.Float64() - 0.5)}
			high := []float64{low[0] + scale*(0.5+rng.Float64()), low[1] + scale*(0.5+rng.Float64())}
			g, err := NewGrid(MustVector(low...), MustVector(high...), []int{2 + rng.Intn(7), 2 + rng.Intn(7)}, nil)
			require.NoError(t, err)

			m := g.Segments()
			on := []int{rng.Intn(m[0] + 1), rng.Intn(m[1] + 1)}
			x, err := g.PointAt(on)
			require.NoError(t, err)
			xs := x.Values()

			a := []float64{0.5 + rng.Float64(), 0.5 + rng.Float64()}
			constraints := map[string]Constraint{
				"dense":  mustDense(t, a, a[0]*xs[0]+a[1]*xs[1]),
				"sparse": mustSparse(t, []int{1}, []float64{a[1]}, a[1]*xs[1]),
			}
			for name, c := range constraints {
				label := fmt.Sprintf("%s scale=%g trial=%d", name, scale, trial)
				lc, err := c.ToLatticeSpace(g)
				require.NoError(t, err, label)
				assert.True(t, lc.HoldsLattice(on), "%s: boundary point %v must be admissible", label, on)
				for _, p := range allLatticePoints(g) {
					x, err := g.PointAt(p)
					require.NoError(t, err)
					assert.Equal(t, c.Holds(x.Values()), lc.HoldsLattice(p), "%s at %v (%s)", label, p, x)
				}
			}
		}
	}
}

func TestHoldsSlackIsRelative(t *testing.T) {
	c := mustDense(t, []float64{1, 1}, 2e8)
	assert.True(t, c.Holds([]float64{1e8, 1e8 + 0.01}), "rounding-sized excess at 1e8 is tolerated")
	assert.False(t, c.Holds([]float64{1e8, 1e8 + 10}))

	unit := DenseSimplex(2)
	assert.True(t, unit.Holds([]float64{0.5, 0.5 + 1e-10}))
	assert.False(t, unit.Holds([]float64{0.5, 0.5 + 1e-6}))
}

func TestLatticeSpaceKeepsVariant(t *testing.T) {
	g, err := Cube(2, 4, nil)
	require.NoError(t, err)

	d, err := DenseSimplex(2).ToLatticeSpace(g)
	require.NoError(t, err)
	assert.IsType(t, &Dense{}, d)
	assert.Equal(t, []float64{0.25, 0.25}, d.(*Dense).Coefficients())
	assert.Equal(t, 1.0, d.(*Dense).Bound())

	s, err := mustSparse(t, []int{1}, []float64{2}, 1).ToLatticeSpace(g)
	require.NoError(t, err)
	assert.IsType(t, &Sparse{}, s)

	shifted, err := NewGrid(MustVector(0.5, 0.5), MustVector(1, 1), []int{2, 2}, nil)
	require.NoError(t, err)
	q, err := DenseSimplex(2).ToLatticeSpace(shifted)
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.(*Dense).Bound(), "b' = b - sum a_j low_j")
}

func TestLatticeSpaceDimensionMismatch(t *testing.T) {
	g, err := Cube(2, 3, nil)
	require.NoError(t, err)

	_, err = DenseSimplex(3).ToLatticeSpace(g)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = mustSparse(t, []int{0, 2}, []float64{1, 1}, 1).ToLatticeSpace(g)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	conj, err := NewConjunction(DenseSimplex(2), mustSparse(t, []int{5}, []float64{1}, 1))
	require.NoError(t, err)
	_, err = conj.ToLatticeSpace(g)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSparseConstructionFailures(t *testing.T) {
	tests := []struct {
		name string
		ind  []int
		val  []float64
	}{
		{"unsorted", []int{2, 1}, []float64{1, 1}},
		{"duplicate", []int{1, 1}, []float64{1, 1}},
		{"negative coefficient", []int{0, 1}, []float64{1, -0.5}},
		{"negative index", []int{-1, 1}, []float64{1, 1}},
		{"length mismatch", []int{0, 1}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSparse(tt.ind, tt.val, 1)
			assert.ErrorIs(t, err, ErrInvalidConstraint)
		})
	}

	_, err := SparseSimplex([]int{3, 1})
	assert.ErrorIs(t, err, ErrInvalidConstraint)
	_, err = NewDense([]float64{1, -1}, 1)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
	_, err = NewDense(nil, 1)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
}

func TestSimplexWeighted(t *testing.T) {
	s, err := SimplexWeighted([]int{4, 1, 4, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, s.Indices())
	assert.Equal(t, []float64{1, 1, 3}, s.Coefficients())
	assert.Equal(t, 1.0, s.Bound())
	assert.Equal(t, 5, s.Arity())

	same, err := SimplexWeighted([]int{2, 4, 4, 1, 4})
	require.NoError(t, err)
	assert.True(t, s.Equal(same))

	plain, err := SparseSimplex([]int{1, 2, 4})
	require.NoError(t, err)
	assert.False(t, s.Equal(plain))
}

func TestConjunctionHolds(t *testing.T) {
	a := mustSparse(t, []int{0, 1}, []float64{1, 1}, 1)
	b := mustDense(t, []float64{0, 0, 2}, 1)
	conj, err := NewConjunction(a, b)
	require.NoError(t, err)

	points := [][]float64{
		{0.2, 0.3, 0.4},
		{0.7, 0.5, 0.1},
		{0.1, 0.1, 0.9},
		{1, 1, 1},
		{0, 0, 0},
	}
	for _, x := range points {
		assert.Equal(t, a.Holds(x) && b.Holds(x), conj.Holds(x), "at %v", x)
	}

	for _, g := range testGrids(t) {
		lc, err := conj.ToLatticeSpace(g)
		require.NoError(t, err)
		la, err := a.ToLatticeSpace(g)
		require.NoError(t, err)
		lb, err := b.ToLatticeSpace(g)
		require.NoError(t, err)
		for _, p := range allLatticePoints(g) {
			assert.Equal(t, la.HoldsLattice(p) && lb.HoldsLattice(p), lc.HoldsLattice(p), "at %v", p)
		}
	}
}

func TestConjunctionEqual(t *testing.T) {
	a := mustSparse(t, []int{0, 1}, []float64{1, 1}, 1)
	b := mustSparse(t, []int{2}, []float64{2}, 1)

	x, err := NewConjunction(a, b)
	require.NoError(t, err)
	y, err := NewConjunction(mustSparse(t, []int{0, 1}, []float64{1, 1}, 1), mustSparse(t, []int{2}, []float64{2}, 1))
	require.NoError(t, err)
	z, err := NewConjunction(b, a)
	require.NoError(t, err)

	// Regression: members that all compare equal make the conjunctions equal.
	assert.True(t, x.Equal(y))
	assert.False(t, x.Equal(z))
	assert.False(t, x.Equal(a))

	shorter, err := NewConjunction(a)
	require.NoError(t, err)
	assert.False(t, x.Equal(shorter))
}

func TestConstraintEqualAcrossVariants(t *testing.T) {
	d := DenseSimplex(2)
	s := mustSparse(t, []int{0, 1}, []float64{1, 1}, 1)
	assert.False(t, d.Equal(s))
	assert.False(t, s.Equal(d))
	assert.True(t, d.Equal(DenseSimplex(2)))
	assert.False(t, d.Equal(mustDense(t, []float64{1, 1}, 2)))
}

func TestAppendUnique(t *testing.T) {
	empty, err := NewConjunction()
	require.NoError(t, err)

	trivial, err := SimplexWeighted([]int{3})
	require.NoError(t, err)
	c, added := empty.AppendUnique(trivial)
	assert.False(t, added)
	assert.Equal(t, 0, c.Len())

	first, err := SimplexWeighted([]int{0, 1})
	require.NoError(t, err)
	c, added = c.AppendUnique(first)
	assert.True(t, added)

	dup, err := SimplexWeighted([]int{1, 0})
	require.NoError(t, err)
	c2, added := c.AppendUnique(dup)
	assert.False(t, added)
	assert.Equal(t, 1, c2.Len())

	weighted, err := SimplexWeighted([]int{1, 0, 0})
	require.NoError(t, err)
	c3, added := c2.AppendUnique(weighted)
	assert.True(t, added)
	assert.Equal(t, 2, c3.Len())
	assert.Equal(t, 1, c2.Len(), "AppendUnique must not modify the receiver")
}

func TestTrivialInUnitCube(t *testing.T) {
	assert.False(t, DenseSimplex(2).TrivialInUnitCube())
	assert.True(t, DenseSimplex(1).TrivialInUnitCube())
	assert.True(t, mustSparse(t, []int{0, 4}, []float64{0.5, 0.5}, 1).TrivialInUnitCube())
}

func TestHoldsShortVector(t *testing.T) {
	assert.False(t, DenseSimplex(3).Holds([]float64{0, 0}))
	assert.False(t, mustSparse(t, []int{4}, []float64{1}, 1).HoldsLattice([]int{0, 0}))
}

func TestVector(t *testing.T) {
	_, err := NewVector(nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	src := []float64{1, 2, 3}
	v, err := NewVector(src)
	require.NoError(t, err)
	src[0] = 99
	got, err := v.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got, "NewVector must copy its input")

	_, err = v.At(3)
	assert.ErrorIs(t, err, ErrIndex)
	_, err = v.At(-1)
	assert.ErrorIs(t, err, ErrIndex)

	assert.True(t, Ones(3).Equal(MustVector(1, 1, 1)))
	assert.False(t, Zero(2).Equal(Zero(3)))
	assert.Equal(t, "(0.5, 1)", MustVector(0.5, 1).String())
}
