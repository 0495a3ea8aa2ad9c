package payoff

import (
	"fmt"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/saddle"
)

// Payoff matrices are the beta player's gain, i.e. the alpha player's loss:
// rows are alpha's pure actions, columns beta's.
var (
	Pennies = [][]float64{
		{1, -1},
		{-1, 1},
	}
	RockPaperScissors = [][]float64{
		{0, 1, -1},
		{-1, 0, 1},
		{1, -1, 0},
	}
	// Inspection is a 2x3 game with a strictly mixed equilibrium: alpha
	// plays (1/2, 1/2), beta (3/8, 5/8, 0), value 1/2.
	Inspection = [][]float64{
		{3, -1, 0},
		{-2, 2, 0.5},
	}
)

// BlockSimplex builds one simplex constraint per block of parameter indices.
// Blocks may repeat indices, which become weights, and may repeat each other;
// duplicates and blocks that every point of the unit cube satisfies are
// dropped.
func BlockSimplex(blocks [][]int) (*grid.Conjunction, error) {
	c, err := grid.NewConjunction()
	if err != nil {
		return nil, err
	}
	for _, block := range blocks {
		s, err := grid.SimplexWeighted(block)
		if err != nil {
			return nil, fmt.Errorf("failed to build simplex for block %v: %w", block, err)
		}
		c, _ = c.AppendUnique(s)
	}
	return c, nil
}

// mixedStrategy expands k-1 free probabilities into a k-point distribution.
// The last entry absorbs the remainder, clipped at zero against rounding.
func mixedStrategy(params []float64) []float64 {
	p := make([]float64, len(params)+1)
	rest := 1.0
	for i, v := range params {
		p[i] = v
		rest -= v
	}
	p[len(params)] = max(rest, 0)
	return p
}

func validateMatrix(a [][]float64) (rows, cols int, err error) {
	rows = len(a)
	if rows < 2 {
		return 0, 0, fmt.Errorf("payoff matrix needs at least 2 rows, got %d", rows)
	}
	cols = len(a[0])
	if cols < 2 {
		return 0, 0, fmt.Errorf("payoff matrix needs at least 2 columns, got %d", cols)
	}
	for i, row := range a {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("payoff matrix row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	return rows, cols, nil
}

func expected(a [][]float64, p, q []float64) float64 {
	var v float64
	for i, row := range a {
		for j, x := range row {
			v += p[i] * x * q[j]
		}
	}
	return v
}

func indexRange(from, n int) []int {
	ind := make([]int, n)
	for i := range ind {
		ind[i] = from + i
	}
	return ind
}

// MatrixGame turns a zero-sum matrix game into a saddle-point problem. Each
// player's mixed strategy over k actions is parameterized by its first k-1
// probabilities, constrained to sum to at most 1.
func MatrixGame(name string, a [][]float64) (Problem, error) {
	return SumGame(name, a)
}

// SumGame plays several independent matrix games at once and sums the
// payoffs. Each game contributes its own simplex block to both players'
// parameter vectors.
func SumGame(name string, games ...[][]float64) (Problem, error) {
	if len(games) == 0 {
		return Problem{}, fmt.Errorf("game %q has no payoff matrices", name)
	}
	type block struct{ alphaOff, alphaLen, betaOff, betaLen int }
	var blocks []block
	var alphaBlocks, betaBlocks [][]int
	alphaDim, betaDim := 0, 0
	for gi, a := range games {
		rows, cols, err := validateMatrix(a)
		if err != nil {
			return Problem{}, fmt.Errorf("game %q matrix %d: %w", name, gi, err)
		}
		b := block{alphaOff: alphaDim, alphaLen: rows - 1, betaOff: betaDim, betaLen: cols - 1}
		blocks = append(blocks, b)
		alphaBlocks = append(alphaBlocks, indexRange(b.alphaOff, b.alphaLen))
		betaBlocks = append(betaBlocks, indexRange(b.betaOff, b.betaLen))
		alphaDim += b.alphaLen
		betaDim += b.betaLen
	}

	alphaCons, err := BlockSimplex(alphaBlocks)
	if err != nil {
		return Problem{}, err
	}
	betaCons, err := BlockSimplex(betaBlocks)
	if err != nil {
		return Problem{}, err
	}

	f := func(alpha, beta grid.Vector) float64 {
		x, y := alpha.Values(), beta.Values()
		var v float64
		for gi, b := range blocks {
			p := mixedStrategy(x[b.alphaOff : b.alphaOff+b.alphaLen])
			q := mixedStrategy(y[b.betaOff : b.betaOff+b.betaLen])
			v += expected(games[gi], p, q)
		}
		return v
	}

	return Problem{
		Name:        name,
		Description: fmt.Sprintf("zero-sum game, %d matrices, alpha minimizes beta's expected gain", len(games)),
		Objective:   saddle.ObjectiveFunc(f),
		Dims:        [2]int{alphaDim, betaDim},
		Constraints: [2]grid.Constraint{alphaCons, betaCons},
		Outer:       saddle.Minimize,
		OuterArg:    saddle.Alpha,
	}, nil
}
