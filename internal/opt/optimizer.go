package opt

// Optimizer minimizes a function over a box. It is the common surface for
// comparing the grid-refinement solver against population-based baselines.
type Optimizer interface {
	// Run minimizes eval over [lower, upper] in dim dimensions and returns the
	// best parameters with their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
