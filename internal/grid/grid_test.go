package grid

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, g *Grid) ([][]int, []Vector) {
	t.Helper()
	points, err := g.Enumerate()
	require.NoError(t, err)
	var lattice [][]int
	var real []Vector
	for p, x := range points {
		lattice = append(lattice, p)
		real = append(real, x)
	}
	return lattice, real
}

func TestNewGridValidation(t *testing.T) {
	tests := []struct {
		name     string
		low      Vector
		high     Vector
		segments []int
		c        Constraint
		wantErr  error
	}{
		{"dimension mismatch", Zero(2), Ones(3), []int{1, 1}, nil, ErrDimensionMismatch},
		{"segments mismatch", Zero(2), Ones(2), []int{1}, nil, ErrDimensionMismatch},
		{"zero segments", Zero(2), Ones(2), []int{1, 0}, nil, ErrInvalidGrid},
		{"empty box", Zero(1), Zero(1), []int{2}, nil, ErrInvalidGrid},
		{"constraint too wide", Zero(2), Ones(2), []int{2, 2}, DenseSimplex(3), ErrDimensionMismatch},
		{"zero vector", Vector{}, Vector{}, nil, nil, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.low, tt.high, tt.segments, tt.c)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEnumerateUnconstrainedCount(t *testing.T) {
	low := MustVector(-1, 0, 2)
	high := MustVector(1, 0.5, 3)
	g, err := NewGrid(low, high, []int{2, 3, 1}, nil)
	require.NoError(t, err)

	lattice, real := collect(t, g)
	require.Len(t, lattice, 3*4*2)
	assert.Equal(t, g.Size(), len(lattice))

	bm, err := g.Admissible()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(lattice)), bm.GetCardinality(), "lattice points must be distinct")

	for _, x := range real {
		for i := 0; i < x.Dim(); i++ {
			v, err := x.At(i)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, low.x[i])
			assert.LessOrEqual(t, v, high.x[i])
		}
	}
}

func TestEnumerateSimplexCube(t *testing.T) {
	g, err := Cube(2, 3, DenseSimplex(2))
	require.NoError(t, err)

	lattice, real := collect(t, g)
	// p0 + p1 <= 3 on a 4x4 lattice.
	assert.Len(t, lattice, 10)
	for i, p := range lattice {
		assert.LessOrEqual(t, p[0]+p[1], 3)
		assert.True(t, g.Constraint().Holds(real[i].Values()), "point %v", real[i])
	}

	count, err := g.Count()
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestEnumerateIsRestartable(t *testing.T) {
	g, err := Cube(3, 4, DenseSimplex(3))
	require.NoError(t, err)

	first, err := g.Admissible()
	require.NoError(t, err)
	second, err := g.Admissible()
	require.NoError(t, err)
	assert.True(t, first.Equals(second))

	// Stopping one walk early does not disturb the next one.
	points, err := g.Enumerate()
	require.NoError(t, err)
	for range points {
		break
	}
	lattice, _ := collect(t, g)
	assert.Equal(t, int(first.GetCardinality()), len(lattice))
}

func TestEnumerateConcurrent(t *testing.T) {
	g, err := Cube(2, 6, DenseSimplex(2))
	require.NoError(t, err)
	want, err := g.Count()
	require.NoError(t, err)

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for w := range counts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := g.Enumerate()
			if err != nil {
				return
			}
			for range points {
				counts[w]++
			}
		}()
	}
	wg.Wait()
	for _, c := range counts {
		assert.Equal(t, want, c)
	}
}

func TestPointAtExact(t *testing.T) {
	low := MustVector(0.1, -3)
	high := MustVector(0.7, 5)
	g, err := NewGrid(low, high, []int{4, 6}, nil)
	require.NoError(t, err)

	x, err := g.PointAt([]int{0, 0})
	require.NoError(t, err)
	assert.True(t, x.Equal(low))

	x, err = g.PointAt([]int{4, 6})
	require.NoError(t, err)
	assert.True(t, x.Equal(high))

	x, err = g.PointAt([]int{2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, x.x[0], 1e-15)
	assert.InDelta(t, 1.0, x.x[1], 1e-15)
}

func TestPointAtErrors(t *testing.T) {
	g, err := Cube(2, 3, nil)
	require.NoError(t, err)

	_, err = g.PointAt([]int{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = g.PointAt([]int{1, 4})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.PointAt([]int{-1, 0})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRefineAroundInterior(t *testing.T) {
	g, err := Cube(2, 4, nil)
	require.NoError(t, err)

	center, err := g.PointAt([]int{2, 1})
	require.NoError(t, err)
	r, err := g.RefineAround(center, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{6, 6}, r.Segments())
	for i := 0; i < 2; i++ {
		assert.InDelta(t, g.CellWidth(i)/3, r.CellWidth(i), 1e-15)
		assert.InDelta(t, center.x[i], (r.low.x[i]+r.high.x[i])/2, 1e-15)
	}
}

func TestRefineAroundClipsAtBoundary(t *testing.T) {
	g, err := Cube(2, 4, nil)
	require.NoError(t, err)

	center := MustVector(0, 1)
	r, err := g.RefineAround(center, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3}, r.Segments())
	assert.Equal(t, 0.0, r.low.x[0])
	assert.InDelta(t, 0.25, r.high.x[0], 1e-15)
	assert.InDelta(t, 0.75, r.low.x[1], 1e-15)
	assert.Equal(t, 1.0, r.high.x[1])
	for i := 0; i < 2; i++ {
		assert.InDelta(t, g.CellWidth(i)/3, r.CellWidth(i), 1e-15)
	}
}

func TestRefineAroundWideRadius(t *testing.T) {
	g, err := Cube(1, 10, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		p        int
		segments int
	}{
		{"centered", 5, 2 * 2 * 4},
		{"one cell from low", 1, 1*4 + 2*4},
		{"on high", 10, 2 * 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center, err := g.PointAt([]int{tt.p})
			require.NoError(t, err)
			r, err := g.RefineAround(center, 4, 2)
			require.NoError(t, err)
			assert.Equal(t, []int{tt.segments}, r.Segments())
			assert.GreaterOrEqual(t, r.low.x[0], g.low.x[0])
			assert.LessOrEqual(t, r.high.x[0], g.high.x[0])
			assert.InDelta(t, g.CellWidth(0)/4, r.CellWidth(0), 1e-12)
		})
	}
}

func TestRefineAroundStaysInsideParent(t *testing.T) {
	g, err := Cube(3, 3, DenseSimplex(3))
	require.NoError(t, err)

	// Walk several refinement levels from every admissible point.
	points, err := g.Enumerate()
	require.NoError(t, err)
	for _, x := range points {
		cur := g
		center := x
		for level := 0; level < 4; level++ {
			next, err := cur.RefineAround(center, 3, 1)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				assert.GreaterOrEqual(t, next.low.x[i], cur.low.x[i])
				assert.LessOrEqual(t, next.high.x[i], cur.high.x[i])
			}
			assert.True(t, next.Constraint().Equal(g.Constraint()))
			cur = next
		}
	}
}

func TestRefineAroundErrors(t *testing.T) {
	g, err := Cube(2, 4, nil)
	require.NoError(t, err)

	_, err = g.RefineAround(MustVector(0.5), 3, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = g.RefineAround(MustVector(0.5, 1.5), 3, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = g.RefineAround(MustVector(0.5, 0.5), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidGrid)
	_, err = g.RefineAround(MustVector(0.5, 0.5), 3, 0)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestDegenerateRegion(t *testing.T) {
	t.Run("single admissible point", func(t *testing.T) {
		c, err := NewDense([]float64{1}, 0)
		require.NoError(t, err)
		g, err := Cube(1, 5, c)
		require.NoError(t, err)

		lattice, real := collect(t, g)
		require.Len(t, lattice, 1)
		assert.Equal(t, []int{0}, lattice[0])
		assert.True(t, real[0].Equal(Zero(1)))
	})

	t.Run("no admissible point", func(t *testing.T) {
		c, err := NewDense([]float64{1}, -1)
		require.NoError(t, err)
		g, err := Cube(1, 5, c)
		require.NoError(t, err)

		count, err := g.Count()
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestIndexMatchesEnumerationOrder(t *testing.T) {
	g, err := NewGrid(Zero(3), Ones(3), []int{2, 1, 3}, nil)
	require.NoError(t, err)

	points, err := g.Enumerate()
	require.NoError(t, err)
	want := 0
	for p := range points {
		idx, err := g.Index(p)
		require.NoError(t, err)
		assert.Equal(t, want, idx)
		want++
	}
	_, err = g.Index([]int{3, 0, 0})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCellWidth(t *testing.T) {
	g, err := NewGrid(MustVector(1, -2), MustVector(2, 2), []int{4, 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.25, g.CellWidth(0))
	assert.Equal(t, 0.5, g.CellWidth(1))
	assert.False(t, math.IsNaN(g.CellWidth(1)))
}
