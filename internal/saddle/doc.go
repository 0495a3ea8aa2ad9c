// Package saddle approximates saddle points of a two-argument payoff by nested
// grid search. The outer loop minimizes (or maximizes) over one argument; for
// every outer candidate, an inner loop optimizes the other argument in the
// opposite direction. Both loops refine their grid around the current best
// point for a fixed number of levels.
//
// The inner loop receives the outer best value as a PruneBound and stops as
// soon as its own running best shows that the outer candidate cannot win.
// Pruning never changes the reported value, only the number of evaluations.
package saddle
