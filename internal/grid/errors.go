package grid

import "errors"

var (
	// ErrInvalidConstraint indicates a negative coefficient or malformed sparse index list.
	ErrInvalidConstraint = errors.New("grid: invalid constraint")
	// ErrDimensionMismatch indicates vectors, grids or constraints of disagreeing dimension.
	ErrDimensionMismatch = errors.New("grid: dimension mismatch")
	// ErrOutOfRange indicates a lattice index outside [0, m] or a point outside the grid box.
	ErrOutOfRange = errors.New("grid: out of range")
	// ErrIndex indicates a vector component index outside [0, Dim()).
	ErrIndex = errors.New("grid: index out of bounds")
	// ErrInvalidGrid indicates non-positive segment counts or an empty box.
	ErrInvalidGrid = errors.New("grid: invalid grid")
	// ErrInternalConsistency indicates an enumerated point that fails the grid's own constraint.
	ErrInternalConsistency = errors.New("grid: enumerated point violates constraint")
	// ErrEmptyFeasibleRegion indicates a constraint that admits no lattice point.
	ErrEmptyFeasibleRegion = errors.New("grid: constraint admits no lattice point")
)
