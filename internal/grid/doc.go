// Package grid provides the lattice machinery behind the saddle-point search:
// immutable parameter vectors, linear constraints with non-negative weights,
// and regular grids over axis-aligned boxes that can be refined around a point.
//
// A Grid maps integer lattice coordinates p (0 <= p[i] <= m[i]) to real points
// by linear interpolation between its corners. A Constraint can be rewritten
// into the lattice coordinates of a particular grid, so that filtering lattice
// points never has to interpolate. Both forms agree on every lattice point.
//
// Grids and constraints never change after construction. Enumerate returns an
// independent cursor on every call, so the same Grid can be walked from several
// goroutines at once.
package grid
