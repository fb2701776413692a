package capture

import (
	"context"
	"errors"
)

// Error taxonomy for a capture run. Fatal errors unwind to the top level and
// abort the run; ErrExtraction is recoverable and recorded as a placeholder.
var (
	// ErrNavigation means the initial page could not be reached or did not
	// load within the navigation timeout. Fatal.
	ErrNavigation = errors.New("navigation failed")

	// ErrControlNotFound means the dataset selection control is absent from
	// the page. Fatal: no further state can be trusted.
	ErrControlNotFound = errors.New("dataset selection control not found")

	// ErrSelection means the requested state index is out of range for the
	// selection control. Fatal.
	ErrSelection = errors.New("selection index out of range")

	// ErrRegionNotFound means the sub-region screenshot container is absent
	// for the current state. The region artifact for that state is skipped;
	// the run continues.
	ErrRegionNotFound = errors.New("capture region not found")

	// ErrExtraction means a text extraction region is absent. Recoverable: a
	// placeholder is recorded and the run continues.
	ErrExtraction = errors.New("extraction region not found")
)

// Driver is the minimal browser capability the capture run consumes. The
// production implementation is internal/browser.Session; tests substitute
// mocks.
type Driver interface {
	// Navigate loads the target URL and waits for document readiness plus
	// network quiet. Wraps ErrNavigation on failure.
	Navigate(ctx context.Context, url string) error

	// SelectOption sets the selection control matching selector to the given
	// zero-based index and fires the change event. Wraps ErrControlNotFound
	// or ErrSelection.
	SelectOption(ctx context.Context, selector string, index int) error

	// CaptureFullPage returns a full-page screenshot as an opaque image blob.
	CaptureFullPage(ctx context.Context) ([]byte, error)

	// CaptureRegion returns a screenshot of the first element matching
	// selector. Wraps ErrRegionNotFound if no element matches.
	CaptureRegion(ctx context.Context, selector string) ([]byte, error)

	// Text returns the text content of the first element matching selector.
	// Wraps ErrExtraction if no element matches.
	Text(ctx context.Context, selector string) (string, error)
}
