package store

// Store persists finished solver results. Implementations must be safe for
// concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the result doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveResult atomically saves the result of a job, replacing any
	// previous result with the same jobID.
	SaveResult(jobID string, result *Result) error

	// LoadResult retrieves the result for the given job.
	// Returns ErrNotFound if no result exists for this jobID.
	LoadResult(jobID string) (*Result, error)

	// ListResults returns metadata for all stored results. Unreadable
	// entries are skipped.
	ListResults() ([]ResultInfo, error)

	// DeleteResult removes the result and its level trace.
	// Returns ErrNotFound if no result exists for this jobID.
	DeleteResult(jobID string) error
}

// ErrNotFound is returned when a requested result or trace does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing result.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "result not found: " + e.JobID
	}
	return "result not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
