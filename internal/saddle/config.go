package saddle

// Config controls the resolution of the search. Precision is governed by
// Subdivisions^MaxLevel; there is no runtime convergence test.
type Config struct {
	// Subdivisions is the number of segments per axis of the initial grid, and
	// the number of segments each parent cell is split into when refining.
	Subdivisions int `json:"subdivisions"`
	// MaxLevel is the number of refinement rounds after the initial grid.
	MaxLevel int `json:"maxLevel"`
	// VicinityRadius is the half-width, in parent cells, of a refined grid.
	VicinityRadius int `json:"vicinityRadius"`
	// Workers > 1 evaluates the points of one inner level concurrently.
	Workers int `json:"workers"`
	// CheckInvariants verifies every enumerated point against the real-space constraint.
	CheckInvariants bool `json:"checkInvariants"`
	// DisablePruning runs every inner search to completion.
	DisablePruning bool `json:"disablePruning"`
}

// DefaultConfig returns the standard resolution: 3 subdivisions, 4 refinement levels.
func DefaultConfig() Config {
	return Config{
		Subdivisions:    3,
		MaxLevel:        4,
		VicinityRadius:  1,
		Workers:         1,
		CheckInvariants: true,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.Subdivisions < 2 {
		return &ConfigError{Field: "Subdivisions", Reason: "must be at least 2"}
	}
	if c.MaxLevel < 0 {
		return &ConfigError{Field: "MaxLevel", Reason: "cannot be negative"}
	}
	if c.VicinityRadius < 1 {
		return &ConfigError{Field: "VicinityRadius", Reason: "must be at least 1"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: "must be at least 1"}
	}
	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}
