package saddle

import (
	"fmt"

	"github.com/cwbudde/saddlegrid/internal/grid"
)

// Candidate is an evaluated argument pair.
type Candidate struct {
	Args  [2]grid.Vector
	Value float64
	// Pruned marks an inner search that stopped early because its outer
	// candidate could not win. Value is then only a bound on the full result.
	Pruned bool
}

// Alpha returns the first argument.
func (c Candidate) Alpha() grid.Vector { return c.Args[Alpha] }

// Beta returns the second argument.
func (c Candidate) Beta() grid.Vector { return c.Args[Beta] }

func (c Candidate) String() string {
	s := fmt.Sprintf("f(%s, %s) = %.6g", c.Args[Alpha], c.Args[Beta], c.Value)
	if c.Pruned {
		s += " (pruned)"
	}
	return s
}

// PruneBound carries the outer loop's best value into an inner search.
// Direction is the inner search's direction.
type PruneBound struct {
	Value     float64
	Direction Direction
}

// WillNotWin reports whether an inner running best of v already proves that
// the outer candidate cannot beat Value: a minimizing inner search is done
// once v <= Value, a maximizing one once v >= Value.
func (b PruneBound) WillNotWin(v float64) bool {
	if b.Direction == Minimize {
		return v <= b.Value
	}
	return v >= b.Value
}
