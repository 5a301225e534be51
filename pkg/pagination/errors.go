package pagination

import "fmt"

// ListingError reports a listing page that could not be retrieved or decoded.
// It is fatal for the whole listing.
type ListingError struct {
	URL        string
	Page       int
	StatusCode int    // zero when no response was received
	Body       string // leading bytes of a non-2xx response body
	Err        error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("listing page %d (%s) failed with status %d: %v", e.Page, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("listing page %d (%s) failed: %v", e.Page, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ListingError) Unwrap() error {
	return e.Err
}
