package fetch

import (
	"fmt"

	"github.com/Sternrassler/berry-stats/pkg/pagination"
)

// ItemFetchError reports a detail fetch that aborted the run under PolicyAbort.
type ItemFetchError struct {
	Descriptor pagination.Descriptor
	Index      int // position of the descriptor in the listing
	Completed  int // records fetched before the failure
	Err        error
}

// Error implements the error interface.
func (e *ItemFetchError) Error() string {
	return fmt.Sprintf("fetch %q (%s) failed after %d records: %v",
		e.Descriptor.Name, e.Descriptor.URL, e.Completed, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ItemFetchError) Unwrap() error {
	return e.Err
}
