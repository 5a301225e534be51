package workerpool

import "fmt"

// OrchestrationError reports a batch that failed as a whole: the collection
// loop was interrupted, or every job faulted. Individual job failures never
// produce it.
type OrchestrationError struct {
	Jobs      int
	Completed int
	Faults    int
	Err       error
}

// Error implements the error interface.
func (e *OrchestrationError) Error() string {
	if e.Faults > 0 {
		return fmt.Sprintf("batch orchestration failed (%d/%d jobs faulted): %v", e.Faults, e.Jobs, e.Err)
	}
	return fmt.Sprintf("batch orchestration failed after %d/%d jobs: %v", e.Completed, e.Jobs, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
